package dispatch

const (
	textNoMediaFmt        = "Я не вижу свитков с образами и видениями в моей папке.\nПоложи файлы в: %s"
	textMediaFailed       = "Воля была, но видение не открылось. Проверь файл и права доступа."
	textHolidaysFailed    = "Не удалось заказать о праздниках: увы, но ссылки не обновились."
	textHolidaysFallback  = "Сегодня прошел праздничный день, чтобы просто радоваться жизни."
	textHolidaysManualErr = "Не удалось достать праздники. Похоже, свитки calend.ru не открылись."
	textFilmsMonthEmpty   = "На этот месяц премьер не найдено."
	textFilmsMonthFailed  = "Не получилось получить список премьер. Попробуйте позже."
	textFilmsDayEmpty     = "Фильмов сегодня нет, Гэндальф грустит 😢"
	textFilmsDayFailed    = "Не получилось получить список премьер дня. Попробуйте позже."
	textBaseCaptionFmt    = "База дня: %s"

	textNewYear  = "С Новым годом, путник! Пусть дорога этого года будет светлой, а база — мудрой."
	textBirthday = "С днём рождения, %s! Волшебник никогда не опаздывает, и поздравления тоже приходят вовремя."
)
