package models

// Disposition оценка качества клика, хранится с каждым событием
type Disposition string

const (
	DispositionGood       Disposition = "good"
	DispositionBad        Disposition = "bad"
	DispositionSuspicious Disposition = "suspicious"
)

func (d Disposition) Valid() bool {
	switch d {
	case DispositionGood, DispositionBad, DispositionSuspicious:
		return true
	}
	return false
}

// Source категория источника трафика по referrer
type Source string

const (
	SourceDirect Source = "direct"
	SourceSearch Source = "search"
	SourceSocial Source = "social"
	SourceOther  Source = "other"
)

// DirectReferrer означает запрос без заголовка Referer
const DirectReferrer = "Direct"

// Unknown записывается вместо метаданных, которых не прислал edge
const Unknown = "Unknown"

// ClickEvent пишется один раз на каждый принятый редирект и не изменяется
type ClickEvent struct {
	Slug           string      `json:"slug"`
	DestinationURL string      `json:"original_url"`
	Referrer       string      `json:"referrer"`
	RefDomain      string      `json:"ref_domain"`
	IP             string      `json:"ip"`
	Country        string      `json:"country"`
	City           string      `json:"city"`
	Disposition    Disposition `json:"click_type"`
	UserAgent      string      `json:"user_agent"`
	DeviceType     string      `json:"device_type"`
	Browser        string      `json:"browser"`
	OS             string      `json:"os"`
	QueryParams    string      `json:"query_params"`
	SessionID      string      `json:"session_id"`
	SourceType     Source      `json:"source_type"`
	Timestamp      int64       `json:"timestamp"`     // unix мс
	ResponseTime   int64       `json:"response_time"` // мс
	RateLimitCount int64       `json:"rate_limit_count"`
}

// Live возвращает краткую сводку для живых наблюдателей
func (e ClickEvent) Live() LiveEvent {
	return LiveEvent{
		Slug:      e.Slug,
		IP:        e.IP,
		ClickType: e.Disposition,
		Timestamp: e.Timestamp,
	}
}

// SessionRecord обновляется на каждый клик, побеждает последняя запись
type SessionRecord struct {
	SessionID  string `json:"session_id"`
	IP         string `json:"ip"`
	Slug       string `json:"slug"`
	LastActive int64  `json:"last_active"` // unix мс
}

type LiveEvent struct {
	Slug      string      `json:"slug"`
	IP        string      `json:"ip"`
	ClickType Disposition `json:"clickType"`
	Timestamp int64       `json:"timestamp"`
}
