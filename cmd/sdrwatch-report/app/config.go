package app

import (
	"errors"
	"flag"
	"fmt"
)

type Config struct {
	DBPath     string
	OutputFile string
	Top        int
}

func NewConfig() *Config {
	return &Config{
		Top: 20,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the HTML report file (optional; console summary only when omitted)")
	flag.IntVar(&c.Top, "top", c.Top, "Number of rows per ranking")
	flag.Parse()

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.Top <= 0 {
		err = fmt.Errorf("top must be positive, got %d", c.Top)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}
