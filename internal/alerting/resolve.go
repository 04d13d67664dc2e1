package alerting

import (
	"sort"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/storage"
)

// matchesPreference reports whether a global preference covers a commission
// classification.
func matchesPreference(pref storage.Preference, class classifier.Classification) bool {
	switch pref {
	case storage.PreferenceRugsOnly:
		return class == classifier.ClassificationRug
	case storage.PreferenceRugsAndCautions:
		return class == classifier.ClassificationRug || class == classifier.ClassificationCaution
	case storage.PreferenceAll:
		return true
	}
	return false
}

// CommissionRecipients merges the two eligibility mechanisms for a
// commission event: global subscribers whose preference covers the
// classification, and the validator's own subscribers with commission alerts
// on. The result is deduplicated by email and sorted.
func CommissionRecipients(subs []storage.Subscriber, entity []storage.EntitySubscription, class classifier.Classification) []string {
	seen := make(map[string]struct{})
	for _, sub := range subs {
		if matchesPreference(sub.Preference, class) {
			seen[sub.Email] = struct{}{}
		}
	}
	for _, sub := range entity {
		if sub.CommissionAlerts {
			seen[sub.Email] = struct{}{}
		}
	}
	return sortedEmails(seen)
}

// DelinquencyRecipients returns the validator's subscribers with delinquency
// alerts on. Global preferences filter by classification and a delinquency
// alert carries none, so only per-validator subscriptions apply.
func DelinquencyRecipients(entity []storage.EntitySubscription) []string {
	seen := make(map[string]struct{})
	for _, sub := range entity {
		if sub.DelinquencyAlerts {
			seen[sub.Email] = struct{}{}
		}
	}
	return sortedEmails(seen)
}

func sortedEmails(seen map[string]struct{}) []string {
	emails := make([]string, 0, len(seen))
	for email := range seen {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}
