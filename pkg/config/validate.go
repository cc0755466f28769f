package config

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, validate := range []func() error{
		c.validateCapture,
		c.validateDelivery,
		c.validateRetry,
		c.validateBrowser,
		c.validateServer,
		c.validateLog,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := errors.ValidateSelector(c.Capture.Selector); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "capture.selector: %s", errors.UserMessage(err))
	}
	switch c.Capture.Backend {
	case "", "clone", "mutate":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "capture.backend %q must be clone or mutate", c.Capture.Backend)
	}
	if _, err := receipt.ParseColorScheme(c.Capture.Scheme); err != nil && c.Capture.Scheme != "" {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "capture.scheme %q must be dark or light", c.Capture.Scheme)
	}
	if c.Capture.SettleTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "capture.settle_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if _, err := receipt.ParseMode(c.Delivery.Mode); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "delivery.mode %q must be share or download", c.Delivery.Mode)
	}
	if c.Delivery.RevokeDelay < 0 || c.Delivery.ObjectTTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "delivery durations cannot be negative")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retry.max_attempts must be at least 1")
	}
	if c.Retry.Backoff < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retry.backoff cannot be negative")
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if c.Browser.RecycleInterval < 0 || c.Browser.NavigateTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "browser durations cannot be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RedisAddr != "" && c.Server.ObjectDir != "" {
		return errors.New(errors.ErrCodeInvalidInput, "server.redis_addr and server.object_dir are mutually exclusive")
	}
	if c.Server.RedisDB < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.redis_db cannot be negative")
	}
	return nil
}

func (c *Config) validateLog() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "log.level %q is not a log level", c.Log.Level)
	}
	return nil
}
