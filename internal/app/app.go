package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	myErr "movies-etl/internal/types/errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Способы хранения состояния
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

type Config struct {
	SQLitePath    string        `yaml:"sqlite_path"`
	CfgDB         ConfigDB      `yaml:"db"`
	CfgES         ConfigES      `yaml:"es"`
	CfgState      ConfigState   `yaml:"state"`
	CfgRedis      ConfigRedis   `yaml:"redis"`
	CfgKafka      ConfigKafka   `yaml:"kafka"`
	CfgRetry      ConfigRetry   `yaml:"retry"`
	BatchSize     int           `yaml:"batch_size"`
	SleepInterval time.Duration `yaml:"sleep_interval"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	LogFile       string        `yaml:"log_file"`
	OpsAddr       string        `yaml:"ops_addr"`
}

type ConfigDB struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
	Port     uint   `yaml:"port"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
}

type ConfigES struct {
	Host  string `yaml:"host"`
	Port  uint   `yaml:"port"`
	Index string `yaml:"index"`
}

type ConfigState struct {
	Backend string `yaml:"backend"`
	File    string `yaml:"file"`
}

type ConfigRedis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ConfigKafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ConfigRetry struct {
	Start  time.Duration `yaml:"start"`
	Factor float64       `yaml:"factor"`
	Border time.Duration `yaml:"border"`
}

// Default - конфигурация со значениями по умолчанию
func Default() *Config {
	return &Config{
		CfgDB: ConfigDB{Port: 5432},
		CfgES: ConfigES{Port: 9200, Index: "movies"},
		CfgState: ConfigState{
			Backend: StateBackendFile,
			File:    "state.json",
		},
		CfgKafka: ConfigKafka{Topic: "film-works-indexed"},
		CfgRetry: ConfigRetry{
			Start:  100 * time.Millisecond,
			Factor: 2,
			Border: 10 * time.Second,
		},
		BatchSize:     100,
		SleepInterval: 10 * time.Second,
		MaxOpenConns:  10,
		OpsAddr:       ":8090",
	}
}

// NewConfig - собирает конфигурацию: умолчания, YAML файл, .env из рабочей директории, окружение
func NewConfig(configPath string) (*Config, error) {
	return Load(configPath, ".env")
}

// Load - как NewConfig, но с явным путем к .env файлу.
// Отсутствующие файлы пропускаются. Переменные окружения процесса важнее значений из .env.
func Load(configPath, envPath string) (*Config, error) {
	c := Default()

	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(raw, c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		}
	}

	dotenv := map[string]string{}
	if envPath != "" {
		values, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("parse %s: %w", envPath, err)
		}
		if values != nil {
			dotenv = values
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := c.applyEnv(lookup); err != nil {
		return nil, err
	}

	return c, nil
}

type envLookup func(key string) (string, bool)

// first - первое непустое значение из перечисленных переменных
func (l envLookup) first(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := l(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (c *Config) applyEnv(lookup envLookup) error {
	setString := func(dst *string, keys ...string) {
		if v, ok := lookup.first(keys...); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v, ok := lookup.first(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	setPort := func(dst *uint, keys ...string) error {
		v, ok := lookup.first(keys...)
		if !ok {
			return nil
		}
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("%s: %w", keys[0], err)
		}
		*dst = uint(n)
		return nil
	}

	setString(&c.SQLitePath, "SQLITE_PATH")
	setString(&c.CfgDB.Host, "POSTGRES_HOST", "DB_HOST")
	setString(&c.CfgDB.Database, "POSTGRES_DB", "DB_NAME")
	setString(&c.CfgDB.Login, "POSTGRES_USER", "DB_USER")
	setString(&c.CfgDB.Password, "POSTGRES_PASSWORD", "DB_PASSWORD")
	setString(&c.CfgES.Host, "ES_HOST")
	setString(&c.CfgES.Index, "ES_INDEX")
	setString(&c.CfgState.Backend, "STATE_BACKEND")
	setString(&c.CfgState.File, "STATE_FILE")
	setString(&c.CfgRedis.Addr, "REDIS_ADDR")
	setString(&c.CfgRedis.Password, "REDIS_PASSWORD")
	setString(&c.CfgKafka.Topic, "KAFKA_TOPIC")
	setString(&c.LogFile, "LOG_FILE")

	// пустой OPS_ADDR выключает служебный сервер
	if v, ok := lookup("OPS_ADDR"); ok {
		c.OpsAddr = v
	}

	if v, ok := lookup.first("KAFKA_BROKERS"); ok {
		c.CfgKafka.Brokers = splitList(v)
	}

	if v, ok := lookup.first("ETL_SLEEP_INTERVAL"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("ETL_SLEEP_INTERVAL: %w", err)
		}
		c.SleepInterval = d
	}

	for _, err := range []error{
		setPort(&c.CfgDB.Port, "POSTGRES_PORT", "DB_PORT"),
		setPort(&c.CfgES.Port, "ES_PORT"),
		setInt(&c.BatchSize, "BATCH_SIZE"),
		setInt(&c.CfgRedis.DB, "REDIS_DB"),
		setInt(&c.MaxOpenConns, "MAX_OPEN_CONNS"),
	} {
		if err != nil {
			return err
		}
	}

	return nil
}

// Validate - проверяет обязательные параметры и сообщает обо всех отсутствующих сразу
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("SQLITE_PATH", c.SQLitePath)
	require("POSTGRES_HOST", c.CfgDB.Host)
	require("POSTGRES_DB", c.CfgDB.Database)
	require("POSTGRES_USER", c.CfgDB.Login)
	require("POSTGRES_PASSWORD", c.CfgDB.Password)
	require("ES_HOST", c.CfgES.Host)
	if c.CfgDB.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}

	switch c.CfgState.Backend {
	case StateBackendFile:
		require("STATE_FILE", c.CfgState.File)
	case StateBackendRedis:
		require("REDIS_ADDR", c.CfgRedis.Addr)
	default:
		return fmt.Errorf("%w: STATE_BACKEND must be %q or %q, got %q",
			myErr.ErrMissingConfig, StateBackendFile, StateBackendRedis, c.CfgState.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", myErr.ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BATCH_SIZE must be positive, got %d", myErr.ErrMissingConfig, c.BatchSize)
	}

	return nil
}

// DSN - строка подключения lib/pq
func (c ConfigDB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Login, c.Password, c.Database,
	)
}

// Address - адрес Elasticsearch, схема http добавляется если не указана
func (c ConfigES) Address() string {
	if strings.Contains(c.Host, "://") {
		return c.Host
	}
	return "http://" + net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10))
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseSeconds - принимает "10s", "1m30s" или просто число секунд
func parseSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}

	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative interval %q", v)
	}

	return time.Duration(secs * float64(time.Second)), nil
}
