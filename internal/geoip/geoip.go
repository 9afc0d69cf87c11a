// Package geoip определяет страну и город клиента по базе MaxMind
// GeoLite2/GeoIP2 City.
package geoip

import (
	"fmt"
	"net"

	"github.com/SergeiKhy/clicktrail/internal/models"
	geoip2 "github.com/oschwald/geoip2-golang"
)

type Locator struct {
	db *geoip2.Reader
}

// Open открывает базу по пути path. Файл остаётся отображённым в память до Close.
func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &Locator{db: db}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Locate возвращает ISO-код страны и английское название города для ip.
// Всё, что не удалось определить, возвращается как Unknown. nil Locator
// ничего не определяет.
func (l *Locator) Locate(ip string) (country, city string) {
	country, city = models.Unknown, models.Unknown
	if l == nil || l.db == nil {
		return
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return
	}

	record, err := l.db.City(parsed)
	if err != nil {
		return
	}

	if record.Country.IsoCode != "" {
		country = record.Country.IsoCode
	}
	if name := record.City.Names["en"]; name != "" {
		city = name
	}
	return
}
