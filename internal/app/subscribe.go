package app

import (
	"context"
	"errors"

	"validator-commission-alerts/internal/storage"
)

// Subscribe upserts a subscription. With a vote account it manages the
// per-validator row, otherwise the global preference row; the two are
// independent and may coexist for one email.
func (a *App) Subscribe(ctx context.Context, opts SubscribeOptions) error {
	if opts.Email == "" {
		return errors.New("--email is required")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.VoteAccount != "" {
		if !opts.Commission && !opts.Delinquency {
			return errors.New("per-validator subscriptions need --commission and/or --delinquency")
		}
		err := store.UpsertEntitySubscription(ctx, storage.EntitySubscription{
			Email:             opts.Email,
			VoteAccount:       opts.VoteAccount,
			CommissionAlerts:  opts.Commission,
			DelinquencyAlerts: opts.Delinquency,
		})
		if err != nil {
			return err
		}
		a.Logger.Info().
			Str("email", opts.Email).
			Str("vote_account", opts.VoteAccount).
			Bool("commission", opts.Commission).
			Bool("delinquency", opts.Delinquency).
			Msg("validator subscription saved")
		return nil
	}

	preference := storage.PreferenceRugsOnly
	if opts.Preference != "" {
		parsed, err := storage.ParsePreference(opts.Preference)
		if err != nil {
			return err
		}
		preference = parsed
	}
	if err := store.UpsertSubscriber(ctx, storage.Subscriber{Email: opts.Email, Preference: preference}); err != nil {
		return err
	}
	a.Logger.Info().
		Str("email", opts.Email).
		Str("preference", string(preference)).
		Msg("subscription saved")
	return nil
}

// Unsubscribe removes subscriptions. With a vote account only that validator
// row goes; otherwise the global row and every per-validator row for the
// email are removed.
func (a *App) Unsubscribe(ctx context.Context, opts SubscribeOptions) error {
	if opts.Email == "" {
		return errors.New("--email is required")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.VoteAccount != "" {
		if err := store.DeleteEntitySubscription(ctx, opts.Email, opts.VoteAccount); err != nil {
			return err
		}
		a.Logger.Info().
			Str("email", opts.Email).
			Str("vote_account", opts.VoteAccount).
			Msg("validator subscription removed")
		return nil
	}

	if err := store.DeleteSubscriber(ctx, opts.Email); err != nil {
		return err
	}
	if err := store.DeleteEntitySubscriptionsByEmail(ctx, opts.Email); err != nil {
		return err
	}
	a.Logger.Info().Str("email", opts.Email).Msg("all subscriptions removed")
	return nil
}
