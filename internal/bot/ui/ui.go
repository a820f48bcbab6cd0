// Package ui: общие для всех обработчиков кнопки, клавиатуры и отправка сообщений.
package ui

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender: часть *tgbotapi.BotAPI, которой пользуются обработчики.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Кнопки главного меню (reply keyboard).
const (
	BtnZoo       = "🦁 Мой зоопарк"
	BtnCollect   = "⭐ Собрать звёзды"
	BtnBalance   = "💰 Баланс"
	BtnShop      = "🛒 Магазин"
	BtnGames     = "🎮 Игры"
	BtnReferrals = "👥 Рефералы"
	BtnSettings  = "⚙️ Настройки"
)

// Префиксы callback data. Аргумент идёт после ":".
const (
	CbShop          = "shop"     // shop:<rarity>
	CbBuy           = "buy"      // buy:<species>
	CbConvertStars  = "conv_stars"
	CbConvertMoney  = "conv_money"
	CbDeposit       = "deposit"  // deposit:<network>
	CbWithdraw      = "withdraw" // withdraw:<network>
	CbSetAddress    = "addr"     // addr:<network>
	CbHistory       = "history"
	CbReferralStats = "ref_stats"
	CbBattle        = "battle"
	CbBetUp         = "bet_up"
	CbBetDown       = "bet_down"
	CbBattleStart   = "battle_go"
	CbDice          = "dice"
	CbLottery       = "lottery"
	CbLotteryBuy    = "lottery_buy"
	CbApprove       = "approve"     // approve:<tx_id>
	CbReject        = "reject"      // reject:<tx_id>
	CbAdminPending  = "adm_pending" // adm_pending:<kind>:<page>
	CbAdminStats    = "adm_stats"
	CbAdminRate     = "adm_rate" // adm_rate:<which>
	CbBack          = "back"
)

// MainMenu: постоянная клавиатура игрока.
func MainMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnZoo), tgbotapi.NewKeyboardButton(BtnCollect)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnBalance), tgbotapi.NewKeyboardButton(BtnShop)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnGames), tgbotapi.NewKeyboardButton(BtnReferrals)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnSettings)),
	)
	kb.ResizeKeyboard = true
	return kb
}

// Data собирает callback data: Data("buy", "lion") → "buy:lion".
func Data(prefix string, args ...string) string {
	out := prefix
	for _, a := range args {
		out += ":" + a
	}
	return out
}

// Button: inline-кнопка.
func Button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

// Rows собирает inline-клавиатуру по одной кнопке в ряд.
func Rows(buttons ...tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(b))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Send отправляет текст. markup может быть nil.
func Send(s Sender, chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// Answer закрывает «часики» на inline-кнопке.
func Answer(s Sender, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := s.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}
