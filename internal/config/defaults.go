package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBPath = "streambot.db"

	DefaultTelegramRequestTimeout = 15 * time.Second
	DefaultTelegramPollTimeout    = 30 * time.Second

	DefaultNightModeStart = "00:00"
	DefaultNightModeEnd   = "07:00"

	DefaultTMDbBaseURL      = "https://api.themoviedb.org/3"
	DefaultTMDbImageBaseURL = "https://image.tmdb.org/t/p/w500"
	DefaultLanguage         = "en"

	DefaultHTTPTimeout     = 15 * time.Second
	DefaultHTTPMaxAttempts = 2 // one retry on 429
	DefaultHTTPMaxBackoff  = 30 * time.Second
	DefaultHTTPRateLimit   = 4.0
	DefaultHTTPBurst       = 4

	DefaultMediaSessionTTL    = 15 * time.Minute
	DefaultMediaMaxCandidates = 8

	// Scheduled task names, shared with the task registry.
	TaskNightMode      = "night_mode"
	TaskSQLMaintenance = "sql_maintenance"
)

// MessagesConfig holds every user-visible text. Fields ending in Fmt are
// fmt format strings; their verbs are documented next to the default.
// Texts are sent with HTML parse mode, substituted values are escaped.
type MessagesConfig struct {
	Start string `mapstructure:"start"` // %s: user name
	Help  string `mapstructure:"help"`

	GeneralError string `mapstructure:"general_error"`
	NotAdmin     string `mapstructure:"not_admin"`
	GroupOnly    string `mapstructure:"group_only"`
	NoGroup      string `mapstructure:"no_group"`

	GroupSetFmt        string `mapstructure:"group_set_fmt"` // %d: chat id
	LanguageSetFmt     string `mapstructure:"language_set_fmt"`
	LanguageMissing    string `mapstructure:"language_missing"`
	LanguageInvalid    string `mapstructure:"language_invalid"`
	NightModeStarted   string `mapstructure:"night_mode_started"`
	NightModeEnded     string `mapstructure:"night_mode_ended"`
	NightModeWarnFmt   string `mapstructure:"night_mode_warn_fmt"`   // %s, %s: window start and end
	NightModeStatusFmt string `mapstructure:"night_mode_status_fmt"` // %s start, %s end, %s timezone, %s state
	NightModeOn        string `mapstructure:"night_mode_on"`
	NightModeOff       string `mapstructure:"night_mode_off"`
	AlreadyActive      string `mapstructure:"already_active"`
	AlreadyInactive    string `mapstructure:"already_inactive"`
	NightModeEnabled   string `mapstructure:"night_mode_enabled"`
	NightModeDisabled  string `mapstructure:"night_mode_disabled"`

	SearchUsage       string `mapstructure:"search_usage"`
	NoResultsFmt      string `mapstructure:"no_results_fmt"` // %s: query
	ChooseResult      string `mapstructure:"choose_result"`
	InvalidChoice     string `mapstructure:"invalid_choice"`
	DetailsError      string `mapstructure:"details_error"`
	DetailsFmt        string `mapstructure:"details_fmt"` // %s title, %s year, %s stars, %.1f rating, %s overview
	NoOverview        string `mapstructure:"no_overview"`
	AlreadyMovieFmt   string `mapstructure:"already_movie_fmt"`  // %s: title
	AlreadySeriesFmt  string `mapstructure:"already_series_fmt"` // %s: title
	NoTVDBIDFmt       string `mapstructure:"no_tvdb_id_fmt"`     // %s: title
	ConfirmFmt        string `mapstructure:"confirm_fmt"`        // %s: title
	ConfirmYes        string `mapstructure:"confirm_yes"`
	ConfirmNo         string `mapstructure:"confirm_no"`
	ConfirmHint       string `mapstructure:"confirm_hint"`
	CancelledFmt      string `mapstructure:"cancelled_fmt"` // %s: title
	QualityProfileErr string `mapstructure:"quality_profile_error"`

	RequestedFmt       string `mapstructure:"requested_fmt"`        // %s: title
	RequestedManualFmt string `mapstructure:"requested_manual_fmt"` // %s: title
	SearchFailedFmt    string `mapstructure:"search_failed_fmt"`    // %s: title
	RequestFailedFmt   string `mapstructure:"request_failed_fmt"`   // %s title, %d status code
	SessionExpired     string `mapstructure:"session_expired"`

	WelcomeFmt string `mapstructure:"welcome_fmt"` // %s name, %s username, %s join time

	AnnounceUsage      string `mapstructure:"announce_usage"`
	AnnounceUnknownFmt string `mapstructure:"announce_unknown_fmt"` // %s: topic
	AnnounceSentFmt    string `mapstructure:"announce_sent_fmt"`    // %s: topic
}

// DefaultMessages are the German texts of the StreamNet TV group.
var DefaultMessages = MessagesConfig{
	Start: "Hi %s! Willkommen bei StreamNet TV, ich bin Mr.StreamNet - der Butler der Gruppe.",
	Help: "Verfügbare Befehle:\n" +
		"/search &lt;Titel&gt; - Film oder Serie anfragen\n" +
		"/night_mode - Status des Nachtmodus\n" +
		"/set_group_id - Gruppe festlegen (Admin)\n" +
		"/set_language &lt;Code&gt; - Sprache festlegen (Admin)\n" +
		"/enable_night_mode - Nachtmodus starten (Admin)\n" +
		"/disable_night_mode - Nachtmodus beenden (Admin)\n" +
		"/announce &lt;Topic&gt; &lt;Text&gt; - Mitteilung in ein Topic senden (Admin)",

	GeneralError: "Unerwarteter Fehler aufgetreten. Bitte versuche es erneut.",
	NotAdmin:     "🚫 Dieser Befehl ist nur für Admins der Gruppe.",
	GroupOnly:    "Dieser Befehl funktioniert nur in einer Gruppe.",
	NoGroup:      "🆘 Es wurde noch keine Gruppe festgelegt. Benutze /set_group_id in der Gruppe.",

	GroupSetFmt:        "Group chat ID set to: %d",
	LanguageSetFmt:     "Language set to: %s",
	LanguageMissing:    "Bitte gebe eine Language Code ein (e.g., 'en', 'de').",
	LanguageInvalid:    "Ungültiger Language Code. Bitte benutze einen 2-letter Language Code (e.g., 'en', 'de').",
	NightModeStarted:   "🌙 NACHTMODUS AKTIVIERT.\n\nStreamNet TV Staff Team braucht auch mal eine Pause 😴😪🥱💤🛌🏼",
	NightModeEnded:     "☀️ ENDE DES NACHTMODUS.\n\n✅ Ab jetzt kannst du wieder Mitteilungen in der Gruppe senden.",
	NightModeWarnFmt:   "🆘 Sorry, solange der NACHTMODUS aktiviert ist (%s - %s Uhr), kannst du keine Mitteilungen in der Gruppe oder in den Topics senden.",
	NightModeStatusFmt: "🌙 Nachtmodus: %s - %s Uhr (%s)\nStatus: %s",
	NightModeOn:        "aktiv",
	NightModeOff:       "inaktiv",
	AlreadyActive:      "Der Nachtmodus ist bereits aktiv.",
	AlreadyInactive:    "Der Nachtmodus ist bereits beendet.",
	NightModeEnabled:   "✅ Nachtmodus wurde aktiviert.",
	NightModeDisabled:  "✅ Nachtmodus wurde beendet.",

	SearchUsage:        "Bitte ergänze den Befehl mit einem Film oder Serien Titel (e.g., /search Inception).",
	NoResultsFmt:       "🆘 Keine Ergebnisse gefunden für <b>%s</b>. Bitte versuche einen anderen Titel.",
	ChooseResult:       "Mehrere Ergebnisse gefunden. Bitte wähle einen Titel:",
	InvalidChoice:      "Ungültige Auswahl. Bitte versuche es erneut.",
	DetailsError:       "Fehler beim Laden der Metadaten. Bitte versuche es später erneut.",
	DetailsFmt:         "🎬 <b>%s</b> (%s)\n\n%s - %.1f/10\n\n%s",
	NoOverview:         "Keine Zusammenfassung verfügbar.",
	AlreadyMovieFmt:    "😎 Der Film <b>%s</b> ist bereits bei StreamNet TV vorhanden.",
	AlreadySeriesFmt:   "😎 Die Serie <b>%s</b> ist bereits bei StreamNet TV vorhanden.",
	NoTVDBIDFmt:        "🆘 Keine TVDB ID gefunden für die Serie <b>%s</b>.",
	ConfirmFmt:         "Willst du <b>%s</b> anfragen?",
	ConfirmYes:         "Ja",
	ConfirmNo:          "Nein",
	ConfirmHint:        "Bitte antworte mit 'ja' oder 'nein'.",
	CancelledFmt:       "Anfrage von <b>%s</b> wurde abgebrochen.",
	QualityProfileErr:  "🆘 Quality Profil nicht gefunden.",
	RequestedFmt:       "✅ <b>%s</b> wurde angefragt und die Suche wurde gestartet.",
	RequestedManualFmt: "✅ <b>%s</b> wurde angefragt. Manuelle Suche wurde gestartet.",
	SearchFailedFmt:    "🆘 Suche für <b>%s</b> gescheitert.",
	RequestFailedFmt:   "🆘 Anfragen von <b>%s</b> gescheitert.\nStatus code: <b>%d</b>",
	SessionExpired:     "Kein Film oder Serie angegeben. Bitte suche zuerst nach einem Film oder Serie.",

	WelcomeFmt: "🎉 Howdy, %s!\n\n" +
		"Vielen Dank, dass du diesen Service ausgewählt hast ❤️.\n\n" +
		"Username: %s\n" +
		"Beitritt: %s\n\n" +
		"Wir hoffen, du hast eine gute Unterhaltung mit StreamNet TV.\n\n" +
		"Bei Fragen oder sonstiges einfach in die verschiedenen Topics reinschreiben.",

	AnnounceUsage:      "Benutzung: /announce &lt;Topic&gt; &lt;Text&gt;",
	AnnounceUnknownFmt: "🆘 Unbekanntes Topic: %s",
	AnnounceSentFmt:    "✅ Mitteilung in %s gesendet.",
}

// Default returns a configuration populated with every default value. Only
// credentials and the Sonarr/Radarr endpoints have no default.
func Default() *Config {
	return &Config{
		Logger:   LoggerConfig{Level: DefaultLogLevel},
		Database: DatabaseConfig{Path: DefaultDBPath},
		Telegram: TelegramConfig{
			RequestTimeout: DefaultTelegramRequestTimeout,
			PollTimeout:    DefaultTelegramPollTimeout,
		},
		NightMode: NightModeConfig{
			Start:    DefaultNightModeStart,
			End:      DefaultNightModeEnd,
			Timezone: FallbackTimezone,
		},
		TMDb: TMDbConfig{
			BaseURL:         DefaultTMDbBaseURL,
			ImageBaseURL:    DefaultTMDbImageBaseURL,
			DefaultLanguage: DefaultLanguage,
		},
		HTTP: HTTPConfig{
			Timeout:     DefaultHTTPTimeout,
			MaxAttempts: DefaultHTTPMaxAttempts,
			MaxBackoff:  DefaultHTTPMaxBackoff,
			RateLimit:   DefaultHTTPRateLimit,
			Burst:       DefaultHTTPBurst,
		},
		Media: MediaConfig{
			SessionTTL:    DefaultMediaSessionTTL,
			MaxCandidates: DefaultMediaMaxCandidates,
		},
		Welcome: WelcomeConfig{ButtonText: "StreamNet TV Store"},
		Scheduler: SchedulerConfig{
			Tasks: map[string]TaskConfig{
				TaskNightMode:      {Enabled: true, Schedule: "0 */5 * * * *", RunOnStart: true},
				TaskSQLMaintenance: {Enabled: true, Schedule: "0 30 4 * * *"},
			},
		},
		Messages: DefaultMessages,
	}
}

// setDefaults registers every value of Default() under its mapstructure key.
// AutomaticEnv only overrides keys viper already knows, so keys without a
// default value are registered as well.
func setDefaults(v *viper.Viper) {
	registerDefaults(v, "", reflect.ValueOf(*Default()))
}

func registerDefaults(v *viper.Viper, key string, val reflect.Value) {
	switch val.Kind() {
	case reflect.Struct:
		t := val.Type()
		for i := range t.NumField() {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("mapstructure"), ",")
			if name == "" || name == "-" {
				continue
			}
			registerDefaults(v, joinKey(key, name), val.Field(i))
		}
	case reflect.Map:
		iter := val.MapRange()
		for iter.Next() {
			registerDefaults(v, joinKey(key, iter.Key().String()), iter.Value())
		}
	case reflect.Pointer, reflect.Interface:
		// runtime values such as the resolved location
	default:
		v.SetDefault(key, val.Interface())
	}
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
