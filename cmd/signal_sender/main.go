package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

type options struct {
	url        string
	passphrase string
	strategy   string
	instrument string
	action     string
	price      float64
	quantity   float64
	count      int
	interval   time.Duration
	legacy     bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.url, "url", "http://127.0.0.1:8080/api/signals", "signals endpoint url")
	flag.StringVar(&opts.passphrase, "passphrase", defaultPassphrase(), "webhook passphrase")
	flag.StringVar(&opts.strategy, "strategy", "TEST_STRATEGY", "strategy name")
	flag.StringVar(&opts.instrument, "instrument", "AAPL", "instrument")
	flag.StringVar(&opts.action, "action", "BUY", "BUY or SELL")
	flag.Float64Var(&opts.price, "price", 150.25, "price")
	flag.Float64Var(&opts.quantity, "quantity", 100, "quantity")
	flag.IntVar(&opts.count, "count", 1, "number of signals to send")
	flag.DurationVar(&opts.interval, "interval", time.Second, "interval between signals")
	flag.BoolVar(&opts.legacy, "legacy", false, "send the leg under the legacy signal field")
	flag.Parse()

	if err := logger.NewBuilder().
		SetLevelFiles(logger.LevelFiles{{Level: logger.INFO, Path: "logs/signal_sender.log"}}).
		EnableConsoleOutput(true).
		Build(); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	failed := 0
	for i := 0; i < opts.count; i++ {
		if i > 0 {
			time.Sleep(opts.interval)
		}
		if err := send(client, opts); err != nil {
			failed++
			logger.Error().Err(err).Msg("send signal failed")
		}
	}

	logger.Info().Int("sent", opts.count-failed).Int("failed", failed).Msg("done")
	if failed > 0 {
		logger.Close()
		os.Exit(1)
	}
}

func defaultPassphrase() string {
	if list := config.Passphrases(); len(list) > 0 {
		return list[0]
	}
	return config.DefaultPassphrase
}

// buildSignal 生成一条测试信号
func buildSignal(opts options, now time.Time) map[string]any {
	leg := map[string]any{
		"instrument": opts.instrument,
		"action":     opts.action,
		"price":      opts.price,
		"quantity":   opts.quantity,
	}

	body := map[string]any{
		"strategy_name":     opts.strategy,
		"signal_sent_epoch": now.Unix(),
		"signal_id":         uuid.NewString(),
		"passphrase":        opts.passphrase,
		"timestamp":         now.UTC().Format(time.RFC3339),
	}
	if opts.legacy {
		body["signal"] = leg
	} else {
		body["signal_legs"] = []any{leg}
	}
	return body
}

func send(client *http.Client, opts options) error {
	body := buildSignal(opts, time.Now())
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	logger.Info().
		Str("signal_id", body["signal_id"].(string)).
		Str("instrument", opts.instrument).
		Str("action", opts.action).
		Float64("price", opts.price).
		Str("url", opts.url).
		Msg("sending signal")

	resp, err := client.Post(opts.url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, gjson.GetBytes(raw, "detail").String())
	}

	summary := gjson.GetBytes(raw, "signal_summary")
	logger.Info().
		Str("message", gjson.GetBytes(raw, "message").String()).
		Str("ticker", summary.Get("ticker").String()).
		Str("action", summary.Get("action").String()).
		Str("price", summary.Get("price").String()).
		Msg("signal accepted")

	return nil
}
