package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUptimePercent(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		delinquent int64
		want       string
	}{
		{"full day", 1440, 10, "99.31"},
		{"perfect", 288, 0, "100"},
		{"all down", 12, 12, "0"},
		{"rounding up", 3, 1, "66.67"},
		{"never checked", 0, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := UptimeDay{TotalChecks: tt.total, DelinquentChecks: tt.delinquent}
			want, err := decimal.NewFromString(tt.want)
			if err != nil {
				t.Fatal(err)
			}
			if got := d.UptimePercent(); !got.Equal(want) {
				t.Fatalf("期望 %s, 实际 %s", tt.want, got)
			}
		})
	}
}

func TestParsePreference(t *testing.T) {
	for _, s := range []string{"rugs_only", "rugs_and_cautions", "all"} {
		if _, err := ParsePreference(s); err != nil {
			t.Fatalf("解析 %q 失败: %v", s, err)
		}
	}
	if _, err := ParsePreference("everything"); err == nil {
		t.Fatal("非法偏好应报错")
	}
}
