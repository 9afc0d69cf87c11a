// Package classify определяет устройство, браузер, ОС, источник трафика и
// оценку клика по метаданным запроса. Все функции чистые.
//
// Списки сигнатур упорядочены: если несколько вариантов совпали в одной
// позиции, побеждает более ранний.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/SergeiKhy/clicktrail/internal/models"
)

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

var (
	tabletPattern  = regexp.MustCompile(`(?i)Tablet|iPad`)
	mobilePattern  = regexp.MustCompile(`(?i)Mobile|Tablet|iPad|iPhone|Android`)
	browserPattern = regexp.MustCompile(`(?i)Chrome|Safari|Firefox|Edge|Opera|MSIE`)
	osPattern      = regexp.MustCompile(`(?i)Windows|Mac OS|Linux|Android|iOS`)
	botPattern     = regexp.MustCompile(`(?i)bot|crawl|spider`)

	searchPattern = regexp.MustCompile(`(?i)google|bing|yahoo`)
	socialPattern = regexp.MustCompile(`(?i)facebook|twitter|instagram|linkedin`)
)

// Agent результат разбора заголовка User-Agent
type Agent struct {
	Device  string
	Browser string
	OS      string
}

// ParseUserAgent эвристика, а не полноценный парсер. Браузер и ОС берутся
// по самому левому совпадению в заголовке, иначе Unknown.
func ParseUserAgent(ua string) Agent {
	device := DeviceDesktop
	if mobilePattern.MatchString(ua) {
		device = DeviceMobile
		if tabletPattern.MatchString(ua) {
			device = DeviceTablet
		}
	}
	return Agent{
		Device:  device,
		Browser: firstMatch(browserPattern, ua),
		OS:      firstMatch(osPattern, ua),
	}
}

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindString(s); m != "" {
		return m
	}
	return models.Unknown
}

func IsBot(ua string) bool {
	return botPattern.MatchString(ua)
}

// IsDirect сообщает, означает ли referrer прямой переход
func IsDirect(referrer string) bool {
	return referrer == "" || referrer == models.DirectReferrer
}

// DetectSource определяет категорию источника. Referrer, который не
// разбирается как URL, относится к other.
func DetectSource(referrer string) models.Source {
	if IsDirect(referrer) {
		return models.SourceDirect
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return models.SourceOther
	}
	host := u.Hostname()
	switch {
	case host == "":
		return models.SourceOther
	case searchPattern.MatchString(host):
		return models.SourceSearch
	case socialPattern.MatchString(host):
		return models.SourceSocial
	}
	return models.SourceOther
}

// RefDomain возвращает хост referrer или Direct, если хоста нет
func RefDomain(referrer string) string {
	if IsDirect(referrer) {
		return models.DirectReferrer
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return models.DirectReferrer
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return models.DirectReferrer
	}
	return host
}

// Disposition оценивает клик. Бот важнее подозрения по частоте.
func Disposition(ua string, rateCount, suspiciousAbove int64) models.Disposition {
	if IsBot(ua) {
		return models.DispositionBad
	}
	if rateCount > suspiciousAbove {
		return models.DispositionSuspicious
	}
	return models.DispositionGood
}
