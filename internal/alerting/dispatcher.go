package alerting

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/storage"
)

// Dispatcher 为新产生的事件解析收件人并投递通知。投递是尽力而为的副作用,
// 失败只记录, 不回滚已落库的事件。
type Dispatcher struct {
	subs      storage.SubscriptionStore
	mailer    Mailer
	broadcast Broadcaster
	logger    zerolog.Logger
}

// NewDispatcher 构造告警分发器。mailer 与 broadcast 均可为 nil, 表示该通道关闭。
func NewDispatcher(subs storage.SubscriptionStore, mailer Mailer, broadcast Broadcaster, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:      subs,
		mailer:    mailer,
		broadcast: broadcast,
		logger:    logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// DispatchCommissionEvent 投递一次佣金变更。返回的错误只用于计数,
// 调用方不应据此中断批处理。
func (d *Dispatcher) DispatchCommissionEvent(ctx context.Context, notice CommissionNotice) error {
	subscribers, err := d.subs.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	entity, err := d.subs.ListValidatorSubscriptions(ctx, notice.VoteAccount)
	if err != nil {
		return fmt.Errorf("list validator subscriptions: %w", err)
	}

	var mailErr, broadcastErr error

	recipients := CommissionRecipients(subscribers, entity, notice.Classification)
	if len(recipients) > 0 && d.mailer != nil {
		subject, body := renderCommissionEmail(notice)
		if mailErr = d.mailer.Send(ctx, recipients, subject, body); mailErr != nil {
			d.logger.Warn().Err(mailErr).
				Str("vote_account", notice.VoteAccount).
				Int("recipients", len(recipients)).
				Msg("邮件投递失败")
		}
	}

	// RUG 级别的变更额外广播到公共频道
	if d.broadcast != nil && notice.Classification == classifier.ClassificationRug {
		if broadcastErr = d.broadcast.Broadcast(ctx, renderCommissionBroadcast(notice)); broadcastErr != nil {
			d.logger.Warn().Err(broadcastErr).
				Str("vote_account", notice.VoteAccount).
				Msg("频道广播失败")
		}
	}

	return errors.Join(mailErr, broadcastErr)
}

// DispatchDelinquencyAlert 投递一次掉线告警。只有针对该 validator 订阅了
// 掉线通知的收件人收到。
func (d *Dispatcher) DispatchDelinquencyAlert(ctx context.Context, notice DelinquencyNotice) error {
	entity, err := d.subs.ListValidatorSubscriptions(ctx, notice.VoteAccount)
	if err != nil {
		return fmt.Errorf("list validator subscriptions: %w", err)
	}

	recipients := DelinquencyRecipients(entity)
	if len(recipients) == 0 || d.mailer == nil {
		return nil
	}

	subject, body := renderDelinquencyEmail(notice)
	if err := d.mailer.Send(ctx, recipients, subject, body); err != nil {
		d.logger.Warn().Err(err).
			Str("vote_account", notice.VoteAccount).
			Int("recipients", len(recipients)).
			Msg("掉线邮件投递失败")
		return err
	}
	return nil
}
