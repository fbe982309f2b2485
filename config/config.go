package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ariebrainware/agendamento/availability"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	StoreDriverGorm  = "gorm"
	StoreDriverRedis = "redis"
)

// Config holds the application's configuration values.
type Config struct {
	AppName       string        `json:"appname"`
	AppEnv        string        `json:"appenv"`
	AppPort       uint16        `json:"appport"`
	GinMode       string        `json:"ginmode"`
	DBHost        string        `json:"dbhost"`
	DBPort        uint16        `json:"dbport"`
	DBName        string        `json:"dbname"`
	DBUSER        string        `json:"dbuser"`
	DBPass        string        `json:"dbpass"`
	StoreDriver   string        `json:"storedriver"`
	SlotStart     string        `json:"slotstart"`
	SlotEnd       string        `json:"slotend"`
	SlotStep      time.Duration `json:"slotstep"`
	SessionTTL    time.Duration `json:"sessionttl"`
	UserCacheSize int           `json:"usercachesize"`
}

var config *Config
var once sync.Once

// LoadConfig loads the environment variables from a .env file, and returns a singleton Config instance.
func LoadConfig() *Config {
	once.Do(func() {
		// A missing .env is fine as long as the environment carries the values.
		if err := godotenv.Load(); err != nil && os.Getenv("APPENV") == "production" {
			log.Printf("No .env file loaded: %v", err)
		}

		appPort, _ := strconv.ParseUint(getEnv("APPPORT", "8080"), 10, 16)
		dbPort, _ := strconv.ParseUint(getEnv("DBPORT", "3306"), 10, 16)
		slotStep, _ := strconv.Atoi(getEnv("SLOT_STEP_MINUTES", "15"))
		sessionTTL, _ := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "60"))
		cacheSize, _ := strconv.Atoi(os.Getenv("USER_CACHE_SIZE"))

		// Initialize the Config struct with values from environment variables.
		config = &Config{
			AppName:       getEnv("APPNAME", "agendamento"),
			AppEnv:        os.Getenv("APPENV"),
			AppPort:       uint16(appPort),
			GinMode:       getEnv("GINMODE", "debug"),
			DBHost:        os.Getenv("DBHOST"),
			DBPort:        uint16(dbPort),
			DBName:        os.Getenv("DBNAME"),
			DBUSER:        os.Getenv("DBUSER"),
			DBPass:        os.Getenv("DBPASS"),
			StoreDriver:   getEnv("STORE_DRIVER", StoreDriverGorm),
			SlotStart:     getEnv("SLOT_START", "12:00"),
			SlotEnd:       getEnv("SLOT_END", "20:00"),
			SlotStep:      time.Duration(slotStep) * time.Minute,
			SessionTTL:    time.Duration(sessionTTL) * time.Minute,
			UserCacheSize: cacheSize,
		}
	})
	return config
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Calendar builds the booking calendar from the configured service window.
func (c *Config) Calendar() (*availability.Calendar, error) {
	slots, err := availability.NewCatalog(c.SlotStart, c.SlotEnd, c.SlotStep)
	if err != nil {
		return nil, fmt.Errorf("slot catalog %s-%s/%s: %w", c.SlotStart, c.SlotEnd, c.SlotStep, err)
	}
	return availability.NewCalendar(slots), nil
}

// ConnectMySQL establishes a connection to a MySQL database using the configuration values.
// With APPENV=test it opens a private in-memory SQLite database instead.
func ConnectMySQL() (*gorm.DB, error) {
	cfg := LoadConfig()
	if os.Getenv("APPENV") == "test" || cfg.AppEnv == "test" {
		dsn := fmt.Sprintf("file:agendamento_%d?mode=memory&cache=shared", time.Now().UnixNano())
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}

	// Build the Data Source Name (DSN) using the configuration values.
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUSER, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)

	// Open a database connection.
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
