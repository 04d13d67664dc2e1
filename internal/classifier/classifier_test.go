package classifier

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestClassifyInflationTiers(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name  string
		from  string
		to    string
		class Classification
		delta string
	}{
		{"small raise", "5", "8", ClassificationInfo, "3"},
		{"caution band", "5", "12", ClassificationCaution, "7"},
		{"caution boundary", "5", "10", ClassificationCaution, "5"},
		{"rug jump", "5", "60", ClassificationRug, "55"},
		{"rug boundary", "10", "60", ClassificationRug, "50"},
		{"jump to ceiling", "5", "100", ClassificationRug, "95"},
		{"step onto ceiling", "99", "100", ClassificationRug, "1"},
		{"lowering", "50", "10", ClassificationInfo, "-40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := Observation{Commission: dec(tt.from), Mev: Unknown()}
			cur := Observation{Commission: dec(tt.to), Mev: Unknown()}
			changes := Classify(ref, cur, th)
			if len(changes) != 1 {
				t.Fatalf("期望 1 个变更, 实际 %d", len(changes))
			}
			ch := changes[0]
			if ch.Metric != MetricInflation {
				t.Fatalf("metric 应为 inflation, 实际 %s", ch.Metric)
			}
			if ch.Classification != tt.class {
				t.Fatalf("%s→%s 应分级 %s, 实际 %s", tt.from, tt.to, tt.class, ch.Classification)
			}
			if !ch.Delta.Valid || !ch.Delta.Decimal.Equal(dec(tt.delta)) {
				t.Fatalf("期望 delta %s, 实际 %+v", tt.delta, ch.Delta)
			}
		})
	}
}

func TestClassifyNoOpProducesNothing(t *testing.T) {
	th := DefaultThresholds()
	obs := Observation{Commission: dec("7"), Mev: Numeric(dec("3"))}
	if changes := Classify(obs, obs, th); len(changes) != 0 {
		t.Fatalf("无变化不应产生变更, 实际 %d 个", len(changes))
	}
}

func TestClassifyMevStateFlips(t *testing.T) {
	th := DefaultThresholds()

	ref := Observation{Commission: dec("5"), Mev: Numeric(dec("10"))}
	cur := Observation{Commission: dec("5"), Mev: Disabled()}
	changes := Classify(ref, cur, th)
	if len(changes) != 1 {
		t.Fatalf("期望 1 个变更, 实际 %d", len(changes))
	}
	ch := changes[0]
	if ch.Metric != MetricMev || ch.Classification != ClassificationInfo {
		t.Fatalf("关闭 MEV 应为 mev/info, 实际 %s/%s", ch.Metric, ch.Classification)
	}
	if ch.Delta.Valid {
		t.Fatal("状态翻转不应携带 delta")
	}

	// 反向开启同样只是 info
	changes = Classify(cur, ref, th)
	if len(changes) != 1 || changes[0].Classification != ClassificationInfo {
		t.Fatalf("开启 MEV 应为单个 info 变更, 实际 %+v", changes)
	}
	if changes[0].Delta.Valid {
		t.Fatal("状态翻转不应携带 delta")
	}
}

func TestClassifyMevNumericUsesOwnThresholds(t *testing.T) {
	th := DefaultThresholds()
	ref := Observation{Commission: dec("5"), Mev: Numeric(dec("0"))}
	cur := Observation{Commission: dec("5"), Mev: Numeric(dec("100"))}
	changes := Classify(ref, cur, th)
	if len(changes) != 1 {
		t.Fatalf("期望 1 个变更, 实际 %d", len(changes))
	}
	if changes[0].Metric != MetricMev || changes[0].Classification != ClassificationRug {
		t.Fatalf("MEV 0→100 应为 rug, 实际 %+v", changes[0])
	}
}

func TestClassifyUnknownSideIsSilent(t *testing.T) {
	th := DefaultThresholds()

	ref := Observation{Commission: dec("5"), Mev: Unknown()}
	cur := Observation{Commission: dec("5"), Mev: Numeric(dec("90"))}
	if changes := Classify(ref, cur, th); len(changes) != 0 {
		t.Fatalf("unknown→数值不应产生变更, 实际 %+v", changes)
	}

	ref = Observation{Commission: dec("5"), Mev: Numeric(dec("90"))}
	cur = Observation{Commission: dec("5"), Mev: Unknown()}
	if changes := Classify(ref, cur, th); len(changes) != 0 {
		t.Fatalf("数值→unknown 不应产生变更, 实际 %+v", changes)
	}
}

func TestClassifyBothDisabledIsSilent(t *testing.T) {
	th := DefaultThresholds()
	ref := Observation{Commission: dec("5"), Mev: Disabled()}
	cur := Observation{Commission: dec("5"), Mev: Disabled()}
	if changes := Classify(ref, cur, th); len(changes) != 0 {
		t.Fatalf("disabled→disabled 不应产生变更, 实际 %+v", changes)
	}
}

func TestClassifyMetricsIndependent(t *testing.T) {
	th := DefaultThresholds()
	ref := Observation{Commission: dec("5"), Mev: Numeric(dec("10"))}
	cur := Observation{Commission: dec("80"), Mev: Numeric(dec("12"))}
	changes := Classify(ref, cur, th)
	if len(changes) != 2 {
		t.Fatalf("期望 2 个变更, 实际 %d", len(changes))
	}
	byMetric := map[MetricType]Change{}
	for _, ch := range changes {
		byMetric[ch.Metric] = ch
	}
	if byMetric[MetricInflation].Classification != ClassificationRug {
		t.Fatalf("inflation 5→80 应为 rug, 实际 %s", byMetric[MetricInflation].Classification)
	}
	if byMetric[MetricMev].Classification != ClassificationInfo {
		t.Fatalf("mev 10→12 应为 info, 实际 %s", byMetric[MetricMev].Classification)
	}
}

func TestClassifyRugAtMaxDisabled(t *testing.T) {
	th := DefaultThresholds()
	th.RugAtMax = false
	ref := Observation{Commission: dec("99"), Mev: Unknown()}
	cur := Observation{Commission: dec("100"), Mev: Unknown()}
	changes := Classify(ref, cur, th)
	if len(changes) != 1 || changes[0].Classification != ClassificationInfo {
		t.Fatalf("关闭 rug_at_max 后 99→100 应为 info, 实际 %+v", changes)
	}
}

func TestCommissionValueRoundTrip(t *testing.T) {
	for _, s := range []string{"12.5", "0", "100", "disabled", "unknown"} {
		v, err := ParseCommissionValue(s)
		if err != nil {
			t.Fatalf("解析 %q 失败: %v", s, err)
		}
		if v.String() != s {
			t.Fatalf("期望 %q, 实际 %q", s, v.String())
		}
	}
	if _, err := ParseCommissionValue("not-a-number"); err == nil {
		t.Fatal("非法取值应报错")
	}
	if v, err := ParseCommissionValue(""); err != nil || v.State() != StateUnknown {
		t.Fatalf("空串应解析为 unknown, 实际 %v/%v", v, err)
	}
}

func TestCommissionValueEqual(t *testing.T) {
	if !Numeric(dec("5")).Equal(Numeric(dec("5.0"))) {
		t.Fatal("5 与 5.0 应相等")
	}
	if Numeric(dec("5")).Equal(Disabled()) {
		t.Fatal("数值与 disabled 不应相等")
	}
	if !Disabled().Equal(Disabled()) || !Unknown().Equal(Unknown()) {
		t.Fatal("同状态应相等")
	}
	var zero CommissionValue
	if zero.State() != StateUnknown {
		t.Fatalf("零值应视为 unknown, 实际 %s", zero.State())
	}
}
