package cmd

import (
	"fmt"
	"time"

	"github.com/pithecene-io/lfs-agent/adapter"
	"github.com/pithecene-io/lfs-agent/adapter/redis"
	"github.com/pithecene-io/lfs-agent/adapter/webhook"
	"github.com/pithecene-io/lfs-agent/cli/config"
)

// Notification types.
const (
	notifyWebhook = "webhook"
	notifyRedis   = "redis"
)

// buildAdapter creates the session summary publisher. An empty type means
// notifications are off and yields a nil adapter.
func buildAdapter(nc config.NotifyConfig) (adapter.Adapter, error) {
	switch nc.Type {
	case "":
		return nil, nil
	case notifyWebhook:
		retries := webhook.DefaultRetries
		if nc.Retries != nil {
			retries = *nc.Retries
		}
		a, err := webhook.New(webhook.Config{
			URL:     nc.URL,
			Headers: nc.Headers,
			Timeout: nc.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		return a, nil
	case notifyRedis:
		retries := redis.DefaultRetries
		if nc.Retries != nil {
			retries = *nc.Retries
		}
		a, err := redis.New(redis.Config{
			URL:          nc.URL,
			Channel:      nc.Channel,
			HistoryKey:   nc.HistoryKey,
			HistoryLimit: nc.HistoryLimit,
			Timeout:      nc.Timeout.Duration,
			Retries:      retries,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("notify: unknown type %q (must be %q or %q)", nc.Type, notifyWebhook, notifyRedis)
	}
}

// notifyBudget bounds the whole publish: every attempt at its timeout
// plus the backoff between attempts.
func notifyBudget(nc config.NotifyConfig) time.Duration {
	perAttempt := nc.Timeout.Duration
	retries := webhook.DefaultRetries
	if nc.Type == notifyRedis {
		retries = redis.DefaultRetries
		if perAttempt <= 0 {
			perAttempt = redis.DefaultTimeout
		}
	} else if perAttempt <= 0 {
		perAttempt = webhook.DefaultTimeout
	}
	if nc.Retries != nil && *nc.Retries >= 0 {
		retries = *nc.Retries
	}

	budget := time.Duration(retries+1) * perAttempt
	for i := 1; i <= retries; i++ {
		budget += time.Duration(1<<uint(i-1)) * adapter.BaseBackoff
	}
	return budget
}
