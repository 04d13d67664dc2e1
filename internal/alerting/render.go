package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

// CommissionNotice 封装一次佣金变更告警的上下文。
type CommissionNotice struct {
	VoteAccount    string
	Identity       string
	Epoch          uint64
	Metric         classifier.MetricType
	Classification classifier.Classification
	From           classifier.CommissionValue
	To             classifier.CommissionValue
	Delta          decimal.NullDecimal
}

// DelinquencyNotice 封装一次掉线告警的上下文。
type DelinquencyNotice struct {
	VoteAccount string
	Identity    string
	Epoch       uint64
	ObservedAt  time.Time
}

func severityTag(class classifier.Classification) string {
	return strings.ToUpper(string(class))
}

func metricLabel(metric classifier.MetricType) string {
	if metric == classifier.MetricMev {
		return "MEV commission"
	}
	return "inflation commission"
}

func shortAccount(account string) string {
	if len(account) <= 12 {
		return account
	}
	return account[:4] + "…" + account[len(account)-4:]
}

func formatValue(v classifier.CommissionValue) string {
	if amount, ok := v.Amount(); ok {
		return amount.String() + "%"
	}
	return string(v.State())
}

func formatDelta(delta decimal.NullDecimal) string {
	if !delta.Valid {
		return ""
	}
	if delta.Decimal.IsPositive() {
		return "+" + delta.Decimal.String()
	}
	return delta.Decimal.String()
}

// changeDescription renders what happened. Enable/disable flips of the MEV
// stream get their own copy instead of the numeric raise/lower wording.
func changeDescription(n CommissionNotice) string {
	if n.From.State() != n.To.State() {
		if n.To.State() == classifier.StateDisabled {
			return fmt.Sprintf("disabled %s (was %s)", metricLabel(n.Metric), formatValue(n.From))
		}
		return fmt.Sprintf("enabled %s at %s", metricLabel(n.Metric), formatValue(n.To))
	}

	verb := "raised"
	if n.Delta.Valid && n.Delta.Decimal.IsNegative() {
		verb = "lowered"
	}
	return fmt.Sprintf("%s %s %s → %s", verb, metricLabel(n.Metric), formatValue(n.From), formatValue(n.To))
}

func renderCommissionEmail(n CommissionNotice) (string, string) {
	subject := fmt.Sprintf("[%s] validator %s %s",
		severityTag(n.Classification), shortAccount(n.VoteAccount), changeDescription(n))

	builder := strings.Builder{}
	builder.WriteString("[Validator Commission Alert]\n")
	builder.WriteString(fmt.Sprintf("Validator: %s\n", n.VoteAccount))
	if n.Identity != "" {
		builder.WriteString(fmt.Sprintf("Identity: %s\n", n.Identity))
	}
	builder.WriteString(fmt.Sprintf("Epoch: %d\n", n.Epoch))
	builder.WriteString(fmt.Sprintf("Metric: %s\n", metricLabel(n.Metric)))
	builder.WriteString(fmt.Sprintf("Severity: %s\n", severityTag(n.Classification)))
	builder.WriteString(fmt.Sprintf("Change: %s → %s\n", formatValue(n.From), formatValue(n.To)))
	if delta := formatDelta(n.Delta); delta != "" {
		builder.WriteString(fmt.Sprintf("Delta: %s points\n", delta))
	}
	return subject, builder.String()
}

func renderCommissionBroadcast(n CommissionNotice) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s] Validator %s\n", severityTag(n.Classification), n.VoteAccount))
	builder.WriteString(fmt.Sprintf("%s at epoch %d\n", changeDescription(n), n.Epoch))
	if delta := formatDelta(n.Delta); delta != "" {
		builder.WriteString(fmt.Sprintf("Delta: %s points\n", delta))
	}
	return builder.String()
}

func renderDelinquencyEmail(n DelinquencyNotice) (string, string) {
	subject := fmt.Sprintf("[DELINQUENT] validator %s stopped voting", shortAccount(n.VoteAccount))

	builder := strings.Builder{}
	builder.WriteString("[Validator Delinquency Alert]\n")
	builder.WriteString(fmt.Sprintf("Validator: %s\n", n.VoteAccount))
	if n.Identity != "" {
		builder.WriteString(fmt.Sprintf("Identity: %s\n", n.Identity))
	}
	builder.WriteString(fmt.Sprintf("Epoch: %d\n", n.Epoch))
	builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", n.ObservedAt.UTC().Format(time.RFC3339)))
	builder.WriteString("The validator is reported delinquent. One notice is sent per outage episode.\n")
	return subject, builder.String()
}
