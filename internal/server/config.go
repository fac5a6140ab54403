package server

type Config struct {
	Addr    string `yaml:"addr" json:"addr" validate:"required,hostname_port"`
	SSLCert string `yaml:"sslCert" json:"sslCert"`
	SSLKey  string `yaml:"sslKey" json:"sslKey"`
	// JwtSecret enables bearer token auth on /api/v1 when set.
	JwtSecret string `yaml:"jwtSecret" json:"jwtSecret"`
	Pprof     bool   `yaml:"pprof" json:"pprof"`
}

func DefaultConfig() Config {
	return Config{
		Addr:  "127.0.0.1:8081",
		Pprof: true,
	}
}
