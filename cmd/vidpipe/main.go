package main

import (
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	defaultEnvFile = ".env"
)

type optsGeneral struct {
	EnvFile  string `long:"env-file" env:"ENV_FILE" description:"Load environment variables from this file (if it exists)" default:".env"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogLevel string `long:"log-level" env:"LOG_LEVEL" description:"Log level (debug, info, warn, error)" default:"info"`
	Pretty   bool   `long:"pretty" env:"LOG_PRETTY" description:"Human readable (not JSON) logs"`
}

func (o *optsGeneral) level() string {
	if o.Debug {
		return "debug"
	}
	return o.LogLevel
}

type optsDatabase struct {
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Database connection string (postgres://, sqlite://, memory://)" default:"sqlite://vidpipe.db"`
}

func main() {
	// env vars from the file are set before parsing so env tagged options pick them up
	if err := loadEnvFile(os.Args[1:]); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	var parser = flags.NewParser(nil, flags.Default)
	parser.AddCommand("serve", docServe, docServe, &optsServe{})
	parser.AddCommand("migrate", docMigrate, docMigrate, &optsMigrate{})

	if _, err := parser.Parse(); err != nil {
		switch flagsErr := err.(type) {
		case flags.ErrorType:
			if flagsErr == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		default:
			os.Exit(1)
		}
	}
}

// loadEnvFile loads the file named by --env-file (or $ENV_FILE, or .env). A
// missing default file is fine, a missing named file is not.
func loadEnvFile(args []string) error {
	path, named := envFileArg(args)
	if path == "" {
		path, named = defaultEnvFile, false
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !named {
		return nil
	}
	return godotenv.Load(path)
}

func envFileArg(args []string) (string, bool) {
	for i, a := range args {
		if a == "--env-file" && i+1 < len(args) {
			return args[i+1], true
		}
		if strings.HasPrefix(a, "--env-file=") {
			return strings.TrimPrefix(a, "--env-file="), true
		}
	}
	if v := os.Getenv("ENV_FILE"); v != "" {
		return v, true
	}
	return "", false
}
