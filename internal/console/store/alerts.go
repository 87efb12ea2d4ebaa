package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/xdr-console/internal/connectors"
	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

var ErrRuleNotFound = errors.New("rule not found")

type AlertsAPI interface {
	ListAlertRules(ctx context.Context) ([]domain.AlertRule, error)
	UpdateAlertRule(ctx context.Context, id string, patch domain.AlertRuleUpdate) (connectors.Result[domain.AlertRule], error)
}

// AlertStore — кэш правил оповещения. С клиента меняется только Enabled.
type AlertStore struct {
	api   AlertsAPI
	rules *Collection[domain.AlertRule]
}

func NewAlertStore(api AlertsAPI, logger *zap.Logger) *AlertStore {
	return &AlertStore{
		api:   api,
		rules: NewCollection[domain.AlertRule]("alerts", logger),
	}
}

func (s *AlertStore) FetchAlertRules(ctx context.Context) ([]domain.AlertRule, error) {
	return s.rules.FetchAll(ctx, s.api.ListAlertRules)
}

func (s *AlertStore) UpdateAlertRule(ctx context.Context, id string, patch domain.AlertRuleUpdate) (domain.AlertRule, error) {
	return s.rules.Update(ctx, id, func(ctx context.Context) (connectors.Result[domain.AlertRule], error) {
		return s.api.UpdateAlertRule(ctx, id, patch)
	})
}

// ToggleRule инвертирует Enabled. Правила нет в кэше — ошибка без сетевого вызова.
func (s *AlertStore) ToggleRule(ctx context.Context, id string) (domain.AlertRule, error) {
	rule, ok := s.rules.Find(id)
	if !ok {
		return domain.AlertRule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	enabled := !rule.Enabled
	return s.UpdateAlertRule(ctx, id, domain.AlertRuleUpdate{Enabled: &enabled})
}

// ========== Views ==========

func (s *AlertStore) Rules() []domain.AlertRule { return s.rules.Items() }

func (s *AlertStore) EnabledRules() []domain.AlertRule {
	return s.rules.Filter(func(r domain.AlertRule) bool { return r.Enabled })
}

func (s *AlertStore) DisabledRules() []domain.AlertRule {
	return s.rules.Filter(func(r domain.AlertRule) bool { return !r.Enabled })
}

func (s *AlertStore) RulesBySeverity(sev domain.Severity) []domain.AlertRule {
	return s.rules.Filter(func(r domain.AlertRule) bool { return r.Severity == sev })
}

func (s *AlertStore) Count() int    { return s.rules.Count() }
func (s *AlertStore) Loading() bool { return s.rules.Loading() }
func (s *AlertStore) Error() string { return s.rules.Error() }

func (s *AlertStore) Snapshot() Snapshot[domain.AlertRule] { return s.rules.Snapshot() }
