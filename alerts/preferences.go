package alerts

import (
	"context"
	"errors"
	"time"

	"portfolio-ledger/database"
	"portfolio-ledger/models"
)

// Preferences manages the volatility thresholds users watch.
type Preferences struct {
	store *database.Store
	now   func() time.Time
}

func NewPreferences(store *database.Store) *Preferences {
	return &Preferences{store: store, now: time.Now}
}

type preferenceInput struct {
	UserID    uint    `validate:"required"`
	Symbol    string  `validate:"required,max=10,symbol"`
	Threshold float64 `validate:"gt=0"`
}

// Set stores the threshold of a pair. Changing the threshold of an existing
// preference drops its alert and returns it to normal; the next run
// evaluates it against the new value.
func (p *Preferences) Set(ctx context.Context, userID uint, symbol string, threshold float64) (models.UserPreference, error) {
	in := preferenceInput{UserID: userID, Symbol: models.NormalizeSymbol(symbol), Threshold: threshold}
	if err := models.Validate(in); err != nil {
		return models.UserPreference{}, models.WithSymbol(userID, in.Symbol, err)
	}

	pref := models.UserPreference{UserID: userID, Symbol: in.Symbol, VolatilityThreshold: threshold}
	err := p.store.InTx(ctx, func(tx *database.Store) error {
		current, err := tx.Preference(ctx, userID, in.Symbol)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return err
		case current.VolatilityThreshold != threshold:
			if _, err := tx.DeleteAlerts(ctx, userID, in.Symbol); err != nil {
				return err
			}
		default:
			pref.AlertTriggered = current.AlertTriggered
		}
		pref.UpdatedAt = p.now()
		return tx.UpsertPreference(ctx, &pref)
	})
	if err != nil {
		return models.UserPreference{}, models.WithSymbol(userID, in.Symbol, err)
	}
	return pref, nil
}

func (p *Preferences) List(ctx context.Context, userID uint) ([]models.UserPreference, error) {
	return p.store.Preferences(ctx, userID)
}

// Alerts lists the user's alerts, newest first, with the state of the
// preference each belongs to.
func (p *Preferences) Alerts(ctx context.Context, userID uint) ([]models.EnrichedAlert, error) {
	alerts, err := p.store.Alerts(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := p.store.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]models.UserPreference, len(prefs))
	for _, pref := range prefs {
		bySymbol[pref.Symbol] = pref
	}

	out := make([]models.EnrichedAlert, 0, len(alerts))
	for _, a := range alerts {
		ea := models.EnrichedAlert{ID: a.ID, Symbol: a.Symbol, Message: a.Message, CreatedAt: a.CreatedAt}
		if pref, ok := bySymbol[a.Symbol]; ok {
			ea.VolatilityThreshold = &pref.VolatilityThreshold
			ea.AlertTriggered = &pref.AlertTriggered
		}
		out = append(out, ea)
	}
	return out, nil
}
