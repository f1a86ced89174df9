package navauth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds navigation guard options
type Config interface {
	GetSignInPath() string
	GetHomePath() string
	GetHomeRouteName() string
	GetCallbackRouteName() string
	GetResetPasswordRouteName() string
	GetRecoveryMarker() string
	GetEventTopic() string
	GetMaxRedirects() int
}

var _ Config = Options{}

// Options is the struct form of Config, suitable for config loaders.
type Options struct {
	SignInPath             string `koanf:"signin_path" json:"signin_path"`
	HomePath               string `koanf:"home_path" json:"home_path"`
	HomeRouteName          string `koanf:"home_route_name" json:"home_route_name"`
	CallbackRouteName      string `koanf:"callback_route_name" json:"callback_route_name"`
	ResetPasswordRouteName string `koanf:"reset_password_route_name" json:"reset_password_route_name"`
	RecoveryMarker         string `koanf:"recovery_marker" json:"recovery_marker"`
	EventTopic             string `koanf:"event_topic" json:"event_topic"`
	MaxRedirects           int    `koanf:"max_redirects" json:"max_redirects"`
}

// DefaultOptions returns the storefront defaults.
func DefaultOptions() Options {
	return Options{
		SignInPath:             "/signin",
		HomePath:               "/",
		HomeRouteName:          "home",
		CallbackRouteName:      "callback",
		ResetPasswordRouteName: "resetPassword",
		RecoveryMarker:         "type=recovery",
		EventTopic:             TopicAuth,
		MaxRedirects:           10,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.SignInPath == "" {
		o.SignInPath = def.SignInPath
	}
	if o.HomePath == "" {
		o.HomePath = def.HomePath
	}
	if o.HomeRouteName == "" {
		o.HomeRouteName = def.HomeRouteName
	}
	if o.CallbackRouteName == "" {
		o.CallbackRouteName = def.CallbackRouteName
	}
	if o.ResetPasswordRouteName == "" {
		o.ResetPasswordRouteName = def.ResetPasswordRouteName
	}
	if o.RecoveryMarker == "" {
		o.RecoveryMarker = def.RecoveryMarker
	}
	if o.EventTopic == "" {
		o.EventTopic = def.EventTopic
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = def.MaxRedirects
	}
	return o
}

// Validate runs the validation rules.
func (o Options) Validate() error {
	var absolute = validation.By(func(value any) error {
		p, _ := value.(string)
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("must start with /")
		}
		return nil
	})

	if err := validation.ValidateStruct(&o,
		validation.Field(&o.SignInPath, validation.Required, absolute),
		validation.Field(&o.HomePath, validation.Required, absolute),
		validation.Field(&o.HomeRouteName, validation.Required),
		validation.Field(&o.CallbackRouteName, validation.Required),
		validation.Field(&o.RecoveryMarker, validation.Required),
		validation.Field(&o.EventTopic, validation.Required),
		validation.Field(&o.MaxRedirects, validation.Required, validation.Min(1)),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid navigation options")
	}
	return nil
}

func (o Options) GetSignInPath() string             { return o.SignInPath }
func (o Options) GetHomePath() string               { return o.HomePath }
func (o Options) GetHomeRouteName() string          { return o.HomeRouteName }
func (o Options) GetCallbackRouteName() string      { return o.CallbackRouteName }
func (o Options) GetResetPasswordRouteName() string { return o.ResetPasswordRouteName }
func (o Options) GetRecoveryMarker() string         { return o.RecoveryMarker }
func (o Options) GetEventTopic() string             { return o.EventTopic }
func (o Options) GetMaxRedirects() int              { return o.MaxRedirects }
