package credstore

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"

	"specli/internal/usecase"
)

// AuthConfig describes how a profile authenticates against its API.
// Secret-valued fields (Value, Password) accept references resolved at
// startup: "env:NAME", "file:/path", "store:name", "prompt", or a literal.
type AuthConfig struct {
	// Type is one of "none", "api-key", "bearer", "basic".
	Type string `json:"type" yaml:"type"`
	// Name is the parameter name for api-key auth, e.g. "X-API-Key".
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// In is where the api-key goes: "header" (default), "query", "cookie".
	In       string `json:"in,omitempty" yaml:"in,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// PromptFunc reads a secret interactively. Tests substitute their own.
type PromptFunc func(label string) (string, error)

// TerminalPrompt reads a secret from the controlling terminal without
// echoing it.
func TerminalPrompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret from terminal: %w", err)
	}
	return string(secret), nil
}

// ResolveSecret turns a secret reference into its value.
func ResolveSecret(ref string, store usecase.CredentialStore, prompt PromptFunc) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", usecase.ErrCredentialNotFound, name)
		}
		return value, nil

	case strings.HasPrefix(ref, "file:"):
		path := strings.TrimPrefix(ref, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: reading %s: %v", usecase.ErrCredentialNotFound, path, err)
		}
		return strings.TrimSpace(string(data)), nil

	case strings.HasPrefix(ref, "store:"):
		if store == nil {
			return "", fmt.Errorf("%w: no credential store configured", usecase.ErrCredentialNotFound)
		}
		return store.Get(strings.TrimPrefix(ref, "store:"))

	case ref == "prompt":
		if prompt == nil {
			prompt = TerminalPrompt
		}
		return prompt("Secret")

	default:
		return ref, nil
	}
}

// NewAuthenticator builds the authenticator for a profile's auth config.
// A nil return with nil error means the profile needs no authentication.
func NewAuthenticator(cfg AuthConfig, store usecase.CredentialStore, prompt PromptFunc) (usecase.Authenticator, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "api-key":
		if cfg.Name == "" {
			return nil, fmt.Errorf("api-key auth requires a parameter name")
		}
		value, err := ResolveSecret(cfg.Value, store, prompt)
		if err != nil {
			return nil, err
		}
		in := cfg.In
		if in == "" {
			in = "header"
		}
		return &APIKeyAuth{Name: cfg.Name, In: in, Value: value}, nil

	case "bearer":
		token, err := ResolveSecret(cfg.Value, store, prompt)
		if err != nil {
			return nil, err
		}
		return &BearerAuth{Token: token}, nil

	case "basic":
		password, err := ResolveSecret(cfg.Password, store, prompt)
		if err != nil {
			return nil, err
		}
		return &BasicAuth{Username: cfg.Username, Password: password}, nil

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// APIKeyAuth injects a key as a header, query parameter, or cookie.
type APIKeyAuth struct {
	Name  string
	In    string
	Value string
}

func (a *APIKeyAuth) Apply(req *http.Request) error {
	switch a.In {
	case "header":
		req.Header.Set(a.Name, a.Value)
	case "query":
		q := req.URL.Query()
		q.Set(a.Name, a.Value)
		req.URL.RawQuery = q.Encode()
	case "cookie":
		req.AddCookie(&http.Cookie{Name: a.Name, Value: a.Value})
	default:
		return fmt.Errorf("unknown api-key location %q", a.In)
	}
	return nil
}

// BearerAuth sets an Authorization: Bearer header.
type BearerAuth struct {
	Token string
}

func (a *BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// BasicAuth sets HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (a *BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}
