package delinquency

import "testing"

func TestStepEpisodeYieldsOneAlert(t *testing.T) {
	// 同一故障期内重复观察只告警一次; 恢复后再次故障重新告警
	observations := []bool{true, true, true, false, true}
	state := StateClear
	alerts := 0
	for i, delinquent := range observations {
		d := Step(state, delinquent)
		if d.Alert {
			alerts++
		}
		if d.Changed && d.Next == state {
			t.Fatalf("第 %d 次观察: Changed 为真但状态未变", i)
		}
		state = d.Next
	}
	if alerts != 2 {
		t.Fatalf("期望 2 次告警, 实际 %d", alerts)
	}
	if state != StateAlerted {
		t.Fatalf("期望最终状态 alerted, 实际 %s", state)
	}
}

func TestStepTransitions(t *testing.T) {
	tests := []struct {
		name       string
		current    State
		delinquent bool
		next       State
		alert      bool
		changed    bool
	}{
		{"clear stays clear", StateClear, false, StateClear, false, false},
		{"clear raises alert", StateClear, true, StateAlerted, true, true},
		{"alerted suppresses", StateAlerted, true, StateAlerted, false, false},
		{"alerted recovers silently", StateAlerted, false, StateClear, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Step(tt.current, tt.delinquent)
			if d.Next != tt.next || d.Alert != tt.alert || d.Changed != tt.changed {
				t.Fatalf("期望 %+v, 实际 %+v", tt, d)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState("clear"); err != nil || s != StateClear {
		t.Fatalf("clear 解析失败: %v", err)
	}
	if s, err := ParseState("alerted"); err != nil || s != StateAlerted {
		t.Fatalf("alerted 解析失败: %v", err)
	}
	if _, err := ParseState("bogus"); err == nil {
		t.Fatal("非法状态应报错")
	}
}
