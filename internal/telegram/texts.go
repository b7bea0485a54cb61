package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/legendalf-bot/internal/access"
	"github.com/ykvlv/legendalf-bot/internal/domain"
)

// UI texts
const (
	idFmt = "Каждому путнику дано имя и знак.\nТвой знак: %d\nИмя, которым ты известен: %s"

	mellonAdmitted = "Ты уже допущен к знаниям.\nМолви: «Легэндальф, выдай базу» — и истина откроется тебе."
	mellonQueued   = "Ты не пройдёшь.\nЯ передал твою просьбу хранителю врат.\nМудрость приходит к тем, кто умеет ждать."
	askMellon      = "Прежде чем искать ответы, нужно попросить дозволения.\nНапиши /mellon — и я передам твоё имя дальше."
	askMellonSched = "Прежде чем приказывать времени, нужно получить допуск.\nНапиши /mellon — и я передам твоё имя хранителю врат."
	accessClosed   = "Доступ закрыт. Отправьте /mellon, чтобы запросить доступ."
	howToAsk       = "Слова имеют значение.\nОбратись так: «Легэндальф, выдай базу».\nИли спроси: «Гэндальф?»"
	startupNotice  = "Я служитель вечного огня, повелитель пламени Анора!"

	pendingEmpty  = "Сейчас никто не стоит у врат.\nТишина — редкий, но добрый знак."
	pendingTitle  = "У врат ждут следующие путники:"
	pendingFooter = "\nОткрыть путь: /allow <id>\nОтказать: /deny <id>"
	allowUsage    = "Используй мудро: /allow <user_id>"
	denyUsage     = "Используй мудро: /deny <user_id>"
	allowDoneFmt  = "Решение принято.\nПутнику со знаком %d открыт путь."
	denyDoneFmt   = "Ты отказал путнику со знаком %d.\nТакова воля хранителя."
	usersUsage    = "Формат: /users <id|username> ДД.ММ.ГГГГ"
	usersBadDate  = "Не понял дату. Пример: 12.11.1993"
	usersNotFound = "Не нашёл такого путника среди допущенных или ожидающих."
	birthdayFmt   = "Записал день рождения %s: %s (%s)."
	notForYou     = "Эта власть тебе не дана."
	cbGatesOpen   = "Врата открыты."
	cbDecided     = "Решение принято."

	requestFmt = "У врат появился путник и просит допустить его к мудрости Legendalf:\n" +
		"- знак: %d\n- имя: %s\n- как зовут в миру: %s\n\nОткроем ли ему путь?"
	approvedNotice = "Врата открыты.\nТебе дозволено спрашивать.\nСкажи: «Легэндальф, выдай базу»."
	deniedNotice   = "Пока путь для тебя закрыт.\nНе всякий отказ — конец дороги."

	quoteSaved    = "Слова записаны в свиток. База стала богаче."
	quoteEmpty    = "Я слышу тишину. Пришли слова, и я запишу их."
	mediaAccepted = "Принял видение. Записываю его в свитки…"
	mediaSavedFmt = "Видение сохранено.\n%s"
	mediaFailFmt  = "Не удалось сохранить видение.\n%s"
	mediaNone     = "Я не вижу здесь ни образа, ни видения, которое можно сохранить."
	mediaBadType  = "Это не похоже ни на образ, ни на видение (jpg/png/gif/mp4)."
	mediaNetFail  = "Сеть дрогнула, и видение не дошло до свитка. Попробуй ещё раз."
	mediaDiskFail = "Видение ускользнуло при сохранении. Проверь права и место на диске."

	filmsMonthUsage = "Не понял месяц. Примеры: /films_month февраль 2026 или /films_month 02.26"
	filmsDayUsage   = "Не понял дату. Примеры: /films_day 01.01.2026 или /films_day 1 января 2026"

	schedPickAdd     = "Выбери модуль рассылки."
	schedPickDel     = "Выбери модуль, чтобы отключить."
	schedPickAgain   = "Выбери модуль"
	schedPickDelHint = "Ответь 1, 2, 3 или 4, чтобы выбрать модуль."
	schedAskTimeFmt  = "Укажи время для %s. Формат ЧЧ:ММ (например 09:00)."
	schedWaitTime    = "Я жду время. Пример: 10:00."
	schedBadTime     = "Не понял формат. Введи время в виде 09:30 или 09.30."
	schedUpdated     = "Принято. Рассылка обновлена.\n\n"
	schedClearedFmt  = "График для %s очищен.\n\n"
	schedPickKind    = "Выбери конкретный модуль."
	schedNeedTime    = "Сначала задай время через /schedule_add."
	schedKindFmt     = "Рассылка %s %s.\n\n"
	schedGlobalFmt   = "%s Общий статус обновлён.\n\n"
	tzExample        = "Europe/Moscow"
	tzUsage          = "Использование команды: /schedule_tz " + tzExample
	tzUnknown        = "Я не знаю этот часовой пояс. Пример: " + tzExample + " или Europe/Berlin."
	tzAcceptedFmt    = "Часовой пояс принят: %s.\n\n"
	cbBadChoice      = "Не разобрал выбор."
	cbNotYours       = "Эта кнопка не для тебя."
	cbNeedAccess     = "Сначала получи допуск."
	cbChoiceAccepted = "Выбор принят."
	cbModuleChosen   = "Модуль выбран."
)

type command struct {
	name, description string
}

var (
	commonCommands = []command{
		{"mellon", "Молви «друг» и войди"},
		{"id", "Узнать свой знак (user_id)"},
		{"schedule", "График рассылки"},
		{"holydays", "Праздники сегодняшнего дня"},
		{"films_day", "Премьеры дня"},
		{"films_month", "Премьеры месяца (Кинопоиск)"},
	}
	adminCommands = []command{
		{"pending", "Список путников у врат"},
		{"allow", "Открыть путь путнику"},
		{"deny", "Отказать путнику"},
		{"users", "Путники"},
	}
)

var kindButtonLabels = map[domain.Kind]string{
	domain.KindBase:       "База дня",
	domain.KindHolidays:   "Праздники сегодня",
	domain.KindFilmsMonth: "Кинопремьеры месяца",
	domain.KindFilmsDay:   "Кинопремьеры дня",
}

// kindKeyboard lists the feeds; callback data is "<action>:<uid>:<kind>".
func kindKeyboard(uid int64, action string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.Kinds))
	for _, k := range domain.Kinds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(kindButtonLabels[k], fmt.Sprintf("%s:%d:%s", action, uid, k)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func admissionKeyboard(uid int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Открыть врата", fmt.Sprintf("approve:%d", uid)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Оставить снаружи", fmt.Sprintf("deny:%d", uid)),
		),
	)
}

func usernameOrNone(username string) string {
	if username == "" {
		return "(no username)"
	}
	return "@" + strings.TrimPrefix(username, "@")
}

func fullNameOrNone(p domain.Profile) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "(no name)"
	}
	return name
}

func requestText(p domain.Profile) string {
	return fmt.Sprintf(requestFmt, p.ID, usernameOrNone(p.Username), fullNameOrNone(p))
}

func pendingText(users []domain.User) string {
	if len(users) == 0 {
		return pendingEmpty
	}
	lines := []string{pendingTitle}
	for _, u := range users {
		ts := ""
		if u.RequestedAt != nil {
			ts = u.RequestedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		lines = append(lines, fmt.Sprintf("- %d | %s | %s | %s", u.ID, usernameOrNone(u.Username), fullNameOrNone(u.Profile), ts))
	}
	lines = append(lines, pendingFooter)
	return strings.Join(lines, "\n")
}

func describeKind(sch *domain.Schedule, k domain.Kind) string {
	if sch == nil || sch.Entry(k) == nil {
		return "нет"
	}
	e := sch.Entry(k)
	at := e.AtTime
	if at == "" {
		at = "—"
	}
	state := "выкл"
	if e.Active() {
		state = "вкл"
	}
	return fmt.Sprintf("%s (%s)", state, at)
}

func overviewText(ov *access.Overview) string {
	var lines []string
	if len(ov.Admitted) == 0 {
		lines = append(lines, "Допущенных пока нет.")
	} else {
		lines = append(lines, "Допущенные:")
		for _, m := range ov.Admitted {
			title := fmt.Sprintf("%d: %s", m.User.ID, domain.FormatUsername(m.User.Username))
			if name := strings.TrimSpace(m.User.FirstName + " " + m.User.LastName); name != "" {
				title += " — " + name
			}
			lines = append(lines, title)
			tz := "не задан"
			if m.Schedule != nil && m.Schedule.TZ != "" {
				tz = m.Schedule.TZ
			}
			bd := domain.FormatBirthday(m.User.Birthday)
			lines = append(lines, fmt.Sprintf("  TZ: %s; база: %s; праздники: %s; кино: %s; премьеры дня: %s; ДР: %s",
				tz,
				describeKind(m.Schedule, domain.KindBase),
				describeKind(m.Schedule, domain.KindHolidays),
				describeKind(m.Schedule, domain.KindFilmsMonth),
				describeKind(m.Schedule, domain.KindFilmsDay),
				bd))
		}
	}
	if len(ov.Pending) > 0 {
		lines = append(lines, "", "У врат:")
		for _, u := range ov.Pending {
			since := "неизвестно"
			if u.RequestedAt != nil {
				since = u.RequestedAt.Format("2006-01-02 15:04 MST")
			}
			lines = append(lines, fmt.Sprintf("%d: %s — ждёт с %s", u.ID, domain.FormatUsername(u.Username), since))
		}
	}
	return strings.Join(lines, "\n")
}
