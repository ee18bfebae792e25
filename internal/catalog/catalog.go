// Package catalog holds what the storefront sells: content packages, video
// call durations and the offers the chat hands out.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrNotFound = errors.New("catalog item not found")

// Package is a bundle of content unlocked after payment.
type Package struct {
	ID            string          `yaml:"id" json:"id"`
	Name          string          `yaml:"name" json:"name"`
	Price         decimal.Decimal `yaml:"price" json:"price"`
	OriginalPrice decimal.Decimal `yaml:"original_price" json:"original_price"`
	Features      []string        `yaml:"features" json:"features"`
	Popular       bool            `yaml:"popular" json:"popular"`
	// AccessURL is revealed only once the package is paid.
	AccessURL string `yaml:"access_url" json:"-"`
}

// CallOption is a purchasable video call length.
type CallOption struct {
	Minutes int             `yaml:"minutes" json:"minutes"`
	Price   decimal.Decimal `yaml:"price" json:"price"`
	Popular bool            `yaml:"popular" json:"popular"`
}

// ID is the call option's item id as used by the purchase API.
func (o CallOption) ID() string { return strconv.Itoa(o.Minutes) }

// ChatOffer is a payment button the chat attaches to one of its messages.
type ChatOffer struct {
	ID          string          `yaml:"id" json:"id"`
	Label       string          `yaml:"label" json:"label"`
	Prompt      string          `yaml:"prompt" json:"prompt"`
	Price       decimal.Decimal `yaml:"price" json:"price"`
	CallMinutes int             `yaml:"call_minutes" json:"call_minutes,omitempty"`
	// PackageID links the offer to the package it sells, if any.
	PackageID string `yaml:"package_id" json:"package_id,omitempty"`
}

type Chat struct {
	Greeting string      `yaml:"greeting" json:"greeting"`
	Offers   []ChatOffer `yaml:"offers" json:"offers"`
}

type Catalog struct {
	Packages []Package    `yaml:"packages" json:"packages"`
	Calls    []CallOption `yaml:"calls" json:"calls"`
	Chat     Chat         `yaml:"chat" json:"chat"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects catalogs with missing ids, non-positive prices or duplicates.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, p := range c.Packages {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("package %q: id and name are required", p.ID)
		}
		if !p.Price.IsPositive() {
			return fmt.Errorf("package %q: price must be positive", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("package %q: duplicate id", p.ID)
		}
		seen[p.ID] = true
	}

	minutes := map[int]bool{}
	for _, o := range c.Calls {
		if o.Minutes <= 0 {
			return fmt.Errorf("call option: minutes must be positive, got %d", o.Minutes)
		}
		if !o.Price.IsPositive() {
			return fmt.Errorf("call option %d min: price must be positive", o.Minutes)
		}
		if minutes[o.Minutes] {
			return fmt.Errorf("call option %d min: duplicate duration", o.Minutes)
		}
		minutes[o.Minutes] = true
	}

	offers := map[string]bool{}
	for _, o := range c.Chat.Offers {
		if o.ID == "" || o.Label == "" {
			return fmt.Errorf("chat offer %q: id and label are required", o.ID)
		}
		if !o.Price.IsPositive() {
			return fmt.Errorf("chat offer %q: price must be positive", o.ID)
		}
		if o.CallMinutes < 0 {
			return fmt.Errorf("chat offer %q: call minutes cannot be negative", o.ID)
		}
		if o.PackageID != "" && !seen[o.PackageID] {
			return fmt.Errorf("chat offer %q: unknown package %q", o.ID, o.PackageID)
		}
		if offers[o.ID] {
			return fmt.Errorf("chat offer %q: duplicate id", o.ID)
		}
		offers[o.ID] = true
	}
	return nil
}

func (c *Catalog) Package(id string) (Package, error) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, nil
		}
	}
	return Package{}, fmt.Errorf("package %q: %w", id, ErrNotFound)
}

// CallOption looks up a call option by its minutes, given as an item id.
func (c *Catalog) CallOption(id string) (CallOption, error) {
	minutes, err := strconv.Atoi(id)
	if err == nil {
		for _, o := range c.Calls {
			if o.Minutes == minutes {
				return o, nil
			}
		}
	}
	return CallOption{}, fmt.Errorf("call option %q: %w", id, ErrNotFound)
}

func (c *Catalog) ChatOffer(id string) (ChatOffer, error) {
	for _, o := range c.Chat.Offers {
		if o.ID == id {
			return o, nil
		}
	}
	return ChatOffer{}, fmt.Errorf("chat offer %q: %w", id, ErrNotFound)
}
