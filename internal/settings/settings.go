// Package settings supplies the mutable merchant configuration consumed
// by the reconciliation engine. The backing YAML file is managed
// externally (admin panel); this side only reads it. Edits are picked up
// without a restart: the file's mtime is checked on every read.
package settings

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Settings is one immutable snapshot of the merchant configuration.
type Settings struct {
	MerchantID   string
	MerchantName string
	BearerToken  string
	MinTopup     decimal.Decimal
	MaxTopup     decimal.Decimal
}

type fileSettings struct {
	MerchantID   string `yaml:"merchant_id"`
	MerchantName string `yaml:"merchant_name"`
	BearerToken  string `yaml:"bearer_token"`
	MinTopup     string `yaml:"min_topup"`
	MaxTopup     string `yaml:"max_topup"`
}

var (
	defaultMinTopup = decimal.NewFromInt(1)
	defaultMaxTopup = decimal.NewFromInt(500)
)

// Provider serves the latest settings snapshot. Reads are cheap; the
// file is only re-parsed when its modification time changes.
type Provider struct {
	path string

	mu      sync.RWMutex
	current Settings
	modTime time.Time
}

func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the latest snapshot, re-reading the file first if it
// changed on disk. A file that became unreadable or unparsable keeps the
// last good snapshot in place.
func (p *Provider) Current() Settings {
	info, err := os.Stat(p.path)
	if err == nil {
		p.mu.RLock()
		stale := info.ModTime().After(p.modTime)
		p.mu.RUnlock()
		if stale {
			if err := p.Reload(); err != nil {
				log.Printf("component=settings method=Current path=%s err=%v", p.path, err)
			}
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *Provider) Reload() error {
	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat settings file: %w", err)
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(raw, &fs); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}
	s, err := fromFile(fs)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = s
	p.modTime = info.ModTime()
	p.mu.Unlock()
	return nil
}

func fromFile(fs fileSettings) (Settings, error) {
	s := Settings{
		MerchantID:   fs.MerchantID,
		MerchantName: fs.MerchantName,
		BearerToken:  fs.BearerToken,
		MinTopup:     defaultMinTopup,
		MaxTopup:     defaultMaxTopup,
	}
	if fs.MinTopup != "" {
		min, err := decimal.NewFromString(fs.MinTopup)
		if err != nil {
			return Settings{}, fmt.Errorf("min_topup: %w", err)
		}
		s.MinTopup = min
	}
	if fs.MaxTopup != "" {
		max, err := decimal.NewFromString(fs.MaxTopup)
		if err != nil {
			return Settings{}, fmt.Errorf("max_topup: %w", err)
		}
		s.MaxTopup = max
	}
	if s.MaxTopup.LessThan(s.MinTopup) {
		return Settings{}, fmt.Errorf("max_topup %s below min_topup %s", s.MaxTopup, s.MinTopup)
	}
	return s, nil
}
