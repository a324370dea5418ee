// Пакет version хранит сведения о сборке storebot.
package version

// Подставляются при сборке через -ldflags "-X ...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String собирает строку о сборке для стартового лога.
func String() string {
	return "storebot version=" + version + " commit=" + commit + " date=" + date
}
