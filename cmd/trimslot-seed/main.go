package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/uptrace/bun"

	"trimslot/backend/internal/config"
	"trimslot/backend/internal/domain"
	"trimslot/backend/internal/store/postgres"
)

// Loads a small development fixture: one provider with weekday windows,
// a handful of services, and one requester to book with.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "trimslot-seed"),
	)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("database connection failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		_ = postgres.Close(db)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seed(ctx, db, log); err != nil {
		log.Error("seed failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func seed(ctx context.Context, db *bun.DB, log *slog.Logger) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		provider := domain.Provider{DisplayName: "Studio Firmino", Timezone: "America/Sao_Paulo"}
		if _, err := tx.NewInsert().Model(&provider).Exec(ctx); err != nil {
			return err
		}
		log.Info("provider created", slog.String("provider_id", provider.ID.String()))

		requester := domain.Requester{DisplayName: "Ana Clara"}
		if _, err := tx.NewInsert().Model(&requester).Exec(ctx); err != nil {
			return err
		}
		log.Info("requester created", slog.String("requester_id", requester.ID.String()))

		services := []domain.Service{
			{ProviderID: provider.ID, Name: "Corte Social", PriceCents: 4500, DurationMinutes: 30},
			{ProviderID: provider.ID, Name: "Coloração", PriceCents: 12000, DurationMinutes: 90},
			{ProviderID: provider.ID, Name: "Hidratação", PriceCents: 8000, DurationMinutes: 60},
		}
		for i := range services {
			if _, err := tx.NewInsert().Model(&services[i]).Exec(ctx); err != nil {
				return err
			}
			log.Info("service created",
				slog.String("service_id", services[i].ID.String()),
				slog.String("name", services[i].Name),
			)
		}

		breakStart := 12 * 60
		breakEnd := 13 * 60
		for weekday := int16(1); weekday <= 5; weekday++ {
			window := domain.AvailabilityWindow{
				ProviderID:       provider.ID,
				Weekday:          weekday,
				StartMinute:      9 * 60,
				EndMinute:        17 * 60,
				BreakStartMinute: &breakStart,
				BreakEndMinute:   &breakEnd,
			}
			if _, err := tx.NewInsert().Model(&window).Exec(ctx); err != nil {
				return err
			}
		}
		log.Info("availability created", slog.String("provider_id", provider.ID.String()))

		return nil
	})
}
