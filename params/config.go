package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Node struct {
	// DBPath is the Pebble directory holding accounts and events.
	DBPath string

	// APIAddr is the REST/WebSocket listen address.
	APIAddr string

	// LogFile receives the structured log alongside stdout.
	LogFile string
}

type Genesis struct {
	// AdminKey funds and signs initialize_global_config on first boot.
	// Hex-encoded secp256k1 private key; empty disables auto-init.
	AdminKey string

	// BackendAuthority and ProtocolFeeWallet addresses for auto-init.
	BackendAuthority  string
	ProtocolFeeWallet string
}

type Config struct {
	Node    Node
	Genesis Genesis
}

func Default() Config {
	return Config{
		Node: Node{
			DBPath:  "data/predictr.db",
			APIAddr: ":8080",
			LogFile: "data/node.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("GENESIS_ADMIN_KEY"); v != "" {
		cfg.Genesis.AdminKey = v
	}
	if v := os.Getenv("GENESIS_BACKEND_AUTHORITY"); v != "" {
		cfg.Genesis.BackendAuthority = v
	}
	if v := os.Getenv("GENESIS_PROTOCOL_FEE_WALLET"); v != "" {
		cfg.Genesis.ProtocolFeeWallet = v
	}

	return cfg
}
