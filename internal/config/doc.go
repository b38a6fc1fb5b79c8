// Package config loads bootstrapper configuration from multiple sources (YAML
// files, DOMISAFE_* environment variables, CLI flags) with precedence: CLI
// flags > YAML config > Environment variables > Defaults. It decides which
// interpreter installs dependencies, where the credential may come from and
// how the downstream application is launched.
package config
