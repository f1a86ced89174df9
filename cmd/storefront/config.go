package main

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-navauth"
)

// AppConfig is loaded by go-config from config/app.json and the environment.
type AppConfig struct {
	Server      ServerConfig      `koanf:"server" json:"server"`
	Persistence PersistenceConfig `koanf:"persistence" json:"persistence"`
	Token       TokenConfig       `koanf:"token" json:"token"`
	Navigation  navauth.Options   `koanf:"navigation" json:"navigation"`
}

type ServerConfig struct {
	Address string `koanf:"address" json:"address"`
}

type PersistenceConfig struct {
	DSN string `koanf:"dsn" json:"dsn"`
}

type TokenConfig struct {
	SigningKey string `koanf:"signing_key" json:"signing_key"`
	JWKSURL    string `koanf:"jwks_url" json:"jwks_url"`
	Issuer     string `koanf:"issuer" json:"issuer"`
	Audience   string `koanf:"audience" json:"audience"`
	// Leeway is a duration expression, e.g. "30s".
	Leeway string `koanf:"leeway" json:"leeway"`
}

func (t TokenConfig) GetLeeway() time.Duration {
	if t.Leeway == "" {
		return 0
	}
	dur, err := time.ParseDuration(t.Leeway)
	if err != nil {
		return 0
	}
	return dur
}

// Validate is called by go-config after loading.
func (c *AppConfig) Validate() error {
	c.Navigation = c.Navigation.WithDefaults()
	if c.Server.Address == "" {
		c.Server.Address = ":8572"
	}
	if c.Persistence.DSN == "" {
		c.Persistence.DSN = "file:storefront.db?cache=shared"
	}

	if c.Token.JWKSURL == "" {
		if err := validation.ValidateStruct(&c.Token,
			validation.Field(&c.Token.SigningKey, validation.Required),
		); err != nil {
			return err
		}
	}
	return c.Navigation.Validate()
}
