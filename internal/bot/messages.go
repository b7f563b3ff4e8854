package bot

import (
	"fmt"
	"strings"

	"github.com/noah-isme/referral-bot/internal/models"
)

// Main menu labels. They double as commands when typed or tapped.
const (
	MenuAbout = "ℹ️ О конкурсе"
	MenuStats = "👤 Моя статистика"
	MenuLead  = "➕ Добавить лида"
	MenuInfo  = "📱 Информация для продвижения"
)

// Callback payloads carried by inline buttons.
const (
	CallbackRegister         = "register"
	CallbackLeadCampDO       = "lead_camp_do"
	CallbackLeadCollege      = "lead_college"
	CallbackStartBroadcast   = "start_broadcast"
	CallbackConfirmBroadcast = "confirm_broadcast"
	CallbackCancelBroadcast  = "cancel_broadcast"
	callbackInfoPrefix       = "info_"
)

const cancelHint = "\n\nДля отмены используйте команду /cancel"

const (
	msgRegistrationPrompt = "| /start |\n\n" +
		"Внимание! Обнаружен студент IT-колледжа!\n" +
		"Я - бот, который поможет тебе заполучить главный приз в конкурсе\n\n" +
		"Для участия в конкурсе необходимо зарегистрироваться.\n" +
		"Нажмите кнопку ниже, чтобы начать регистрацию."
	msgWelcomeBack = "С возвращением! Используйте меню для навигации:"

	registrationExample  = "Пример ввода✅:\nИванов Иван Иванович\n1"
	msgRegistrationAsk   = "Для регистрации, пожалуйста, отправь:\n1. ФИО\n2. Курс обучения (1-4)\n\n" + registrationExample
	msgRegistrationBad   = "❌ Пожалуйста, отправьте информацию в правильном формате:\n\n" + registrationExample
	msgCohortOutOfRange  = "❌ Курс должен быть от 1 до 4. Попробуйте снова.\n\n" + registrationExample
	msgRegistrationDone  = "✅ Регистрация успешно завершена!"
	msgAlreadyRegistered = "Вы уже зарегистрированы. Используйте меню для навигации:"
	msgRegistrationError = "❌ Произошла ошибка при добавлении в Google-таблицу. Попробуйте позже!"

	msgLeadNotRegistered = "❌ Сначала зарегистрируйтесь через кнопку '📝 Зарегистрироваться' в главном меню"
	msgLeadChooseProgram = "Выберите тип программы для нового лида:" + cancelHint
	leadInfoExample      = "Пример ввода✅:\nИванов Иван Иванович\n14\n8"
	msgLeadInfoAsk       = "Пожалуйста, отправьте информацию о лиде в следующем формате:\n\n" +
		"ФИО ученика\nВозраст (только число)\nКласс (только число)\n\n" + leadInfoExample + cancelHint
	msgLeadInfoBad     = "❌ Пожалуйста, отправьте информацию в правильном формате:\n\n" + leadInfoExample
	msgGradeOutOfRange = "❌ Класс должен быть от 4 до 9. Попробуйте снова.\n\n" + leadInfoExample
	msgAgeNegative     = "❌ Возраст не может быть отрицательным. Попробуйте снова.\n\n" + leadInfoExample
	msgLeadRejected    = "❌ Данные лида не прошли проверку. Отправьте информацию о лиде ещё раз:\n\n" + leadInfoExample + cancelHint
	msgLeadHandleAsk   = "Теперь отправьте username ученика в Telegram (без @):\n\n" +
		"Если username отсутствует, отправьте 'нет'" + cancelHint
	phoneFormat            = "+7XXXXXXXXXX или 8XXXXXXXXXX"
	msgLeadPhoneAsk        = "Теперь отправьте номер телефона ученика в формате:\n" + phoneFormat + cancelHint
	msgPhoneBadPrefix      = "❌ Неверный формат номера телефона.\nПожалуйста, отправьте номер в формате:\n" + phoneFormat + cancelHint
	msgPhoneBadLength      = "❌ Неверная длина номера телефона.\nПожалуйста, отправьте номер в формате:\n" + phoneFormat + cancelHint
	msgGuardianNameAsk     = "Теперь отправьте ФИО родителя:" + cancelHint
	msgGuardianNameBad     = "❌ ФИО родителя не может быть пустым." + cancelHint
	msgGuardianPhoneAsk    = "Теперь отправьте номер телефона родителя в формате:\n" + phoneFormat + cancelHint
	msgLeadDone            = "✅ Лид добавлен успешно! Баллы будут начислены администратором после проверки."
	msgLeadLostParticipant = "Пожалуйста, сначала зарегистрируйтесь, используя команду /start."
	msgLeadError           = "❌ Произошла ошибка при сохранении данных. Попробуйте позже."

	msgAdminOnly          = "У вас нет доступа к этой команде."
	msgAdminPanel         = "Админ-панель:"
	msgBroadcastAsk       = "Пожалуйста, введите текст для рассылки."
	msgBroadcastEmpty     = "❌ Текст рассылки не может быть пустым. Введите текст ещё раз."
	msgBroadcastPreview   = "Пример рассылки:"
	msgBroadcastConfirm   = "Вы уверены, что хотите начать рассылку с этим текстом?"
	msgBroadcastStarted   = "Рассылка начата..."
	msgBroadcastCancelled = "Рассылка отменена."
	msgBroadcastError     = "❌ Не удалось запустить рассылку. Попробуйте позже."

	msgCancelled     = "❌ Операция отменена"
	msgNotRegistered = "Вы не зарегистрированы в системе. Используйте /start для регистрации."
	msgStoreError    = "❌ Сервис временно недоступен. Попробуйте позже."
	msgUnknown       = "Используйте меню для навигации."
	msgInfoChoose    = "Выберите категорию информации:"
	msgStaleButton   = "Эта кнопка больше не активна."

	msgRules = "📋 Правила участия в конкурсе:\n\n" +
		"1. Зарегистрируйся как участник\n" +
		"2. Приводи новых учеников\n" +
		"3. Получай баллы за каждого привлеченного ученика:\n" +
		"   • 5 баллов за ученика 4-8 класса (Кэмп/ДО)\n" +
		"   • 10 баллов за ученика 9 класса (Колледж)\n" +
		"4. Следи за своим рейтингом\n" +
		"5. Используй материалы для продвижения"
)

type programInfo struct {
	Title string
	Text  string
}

var programInfos = map[string]programInfo{
	"info_courses": {
		Title: "IT-курсы для детей 10–17 лет",
		Text: "Python, веб-разработка, дизайн или робототехника на выбор. " +
			"10+ реальных проектов за год, 4 часа в неделю, занятия в центре города.\n" +
			"Пишите в @college_singularity \"хочу в айти\", и мы отправим полную программу курсов.",
	},
	"info_camp": {
		Title: "Летние смены в Singularity",
		Text: "Смены по 2 недели, 9:30-16:30: кодинг и проекты, экскурсии, мастер-классы и игры. " +
			"Питание, транспорт и материалы включены. Для учеников 5-9 классов.",
	},
	"info_college": {
		Title: "Школа и Колледж Singularity",
		Text: "Поступление после 9 класса: профильное IT-образование и школьная программа в одном месте, " +
			"практика на реальных проектах с первого курса.",
	},
	"info_admission": {
		Title: "О Singularity",
		Text: "Приемная комиссия ответит на вопросы о курсах, лагере и колледже: @college_singularity.",
	},
}

// MainMenu is the reply keyboard shown after every completed flow.
var MainMenu = [][]string{
	{MenuAbout, MenuStats},
	{MenuLead, MenuInfo},
}

func registrationChoices() [][]Choice {
	return [][]Choice{{{Label: "📝 Зарегистрироваться", Data: CallbackRegister}}}
}

func programChoices() [][]Choice {
	return [][]Choice{{
		{Label: models.ProgramCampDO.Label(), Data: CallbackLeadCampDO},
		{Label: models.ProgramCollege.Label(), Data: CallbackLeadCollege},
	}}
}

func adminChoices() [][]Choice {
	return [][]Choice{{{Label: "Начать рассылку", Data: CallbackStartBroadcast}}}
}

func confirmChoices() [][]Choice {
	return [][]Choice{{
		{Label: "✅ Начать", Data: CallbackConfirmBroadcast},
		{Label: "❌ Отменить", Data: CallbackCancelBroadcast},
	}}
}

func infoChoices() [][]Choice {
	return [][]Choice{
		{{Label: "Курсы", Data: "info_courses"}, {Label: "Лагерь", Data: "info_camp"}},
		{{Label: "Колледж-школа", Data: "info_college"}, {Label: "Приемная комиссия", Data: "info_admission"}},
	}
}

// BroadcastReport renders the summary sent to the administrator.
func BroadcastReport(result models.BroadcastResult) string {
	return fmt.Sprintf("✅ Рассылка завершена!\nУспешно отправлено: %d\nНе удалось отправить: %d",
		result.Succeeded, result.Failed)
}

func statsText(stats *models.ParticipantStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Ваша статистика:\n\n👤 ФИО: %s\n🎓 Курс: %d\n⭐️ Баллы: %d\n\n👥 Ваши лиды:\n\n",
		stats.Participant.Name, stats.Participant.Cohort, stats.Points)
	if len(stats.Leads) == 0 {
		b.WriteString("У вас пока нет лидов")
		return b.String()
	}
	for _, lead := range stats.Leads {
		b.WriteString(lead.ChildName)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
