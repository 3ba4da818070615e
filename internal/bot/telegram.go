package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"volumedeck/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// VolumeReader is the slice of the aggregation service the bot needs.
type VolumeReader interface {
	CurrentAggregate(ctx context.Context) (*domain.AggregatedVolume, error)
}

func StartTelegramBot(volumes VolumeReader) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/volume", func(c tele.Context) error {
		agg, err := volumes.CurrentAggregate(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching volume: %v", err))
		}
		return c.Send(formatAggregate(agg))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func formatAggregate(agg *domain.AggregatedVolume) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "24h Trading Volume\nTotal: $%.0f\n", agg.TotalVolume24hUSD)
	for _, info := range agg.Platforms {
		if info.Err != "" {
			fmt.Fprintf(&sb, "%s: unavailable (%s)\n", info.Platform, info.Err)
			continue
		}
		fmt.Fprintf(&sb, "%s: $%.0f\n", info.Platform, info.Volume24hUSD)
	}
	fmt.Fprintf(&sb, "As of %s", agg.LastUpdated.UTC().Format(time.RFC3339))
	return sb.String()
}
