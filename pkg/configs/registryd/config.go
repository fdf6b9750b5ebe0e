package registryd

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xDevNinja/neuro-mesh/pkg/domain"
)

type Config struct {
	// ServerPort is the port registryd listens on.
	ServerPort string `yaml:"port"`

	// DBURI is the connection string of the backing database.
	//
	// When empty, registryd keeps the registry in process memory and
	// loses it on restart.
	DBURI string `yaml:"database,omitempty"`

	// JWTKeyFile points a file holding the HS256 signing key for API tokens.
	JWTKeyFile string `yaml:"jwtKeyFile"`

	// Operators may credit escrow accounts via the deposit endpoint.
	Operators []string `yaml:"operators,omitempty"`

	Limits LimitsConfig `yaml:"limits,omitempty"`
}

type LimitsConfig struct {
	MaxSchemaSize   uint32 `yaml:"maxSchemaSize,omitempty"`
	MaxUriSize      uint32 `yaml:"maxUriSize,omitempty"`
	MaxSubnets      uint32 `yaml:"maxSubnets,omitempty"`
	MaxOwnedSubnets uint32 `yaml:"maxOwnedSubnets,omitempty"`
	SubnetDeposit   uint64 `yaml:"subnetDeposit,omitempty"`
}

// AsLimits converts the config section into registry terms, filling
// zero-valued fields with the deployment defaults.
func (l LimitsConfig) AsLimits() domain.Limits {
	return domain.Limits{
		MaxSchemaSize:   l.MaxSchemaSize,
		MaxUriSize:      l.MaxUriSize,
		MaxSubnets:      l.MaxSubnets,
		MaxOwnedSubnets: l.MaxOwnedSubnets,
		SubnetDeposit:   l.SubnetDeposit,
	}.WithDefaults()
}

// IsOperator reports whether account is allowed to credit escrow accounts.
func (c *Config) IsOperator(account domain.AccountID) bool {
	for _, op := range c.Operators {
		if domain.AccountID(op) == account {
			return true
		}
	}
	return false
}

func LoadRegistrydConfig(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*Config, error) {
	var out Config
	if err := yaml.Unmarshal(conf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
