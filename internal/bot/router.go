package bot

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "help", "помощь":
		b.h.Members.HandleHelp(ctx, chatID)
	case "menu", "меню":
		ui.Send(b.sender, chatID, "🏠 Главное меню", ui.MainMenu())

	case "zoo", "зоопарк":
		b.h.Zoo.HandleZoo(ctx, chatID, userID)
	case "collect", "собрать":
		b.h.Zoo.HandleCollect(ctx, chatID, userID)
	case "shop", "магазин":
		b.h.Zoo.HandleShop(ctx, chatID)

	case "balance", "баланс":
		b.h.Wallet.HandleBalance(ctx, chatID, userID)
	case "deposit", "пополнить":
		b.h.Payments.HandleDepositStart(ctx, chatID)
	case "withdraw", "вывод":
		b.h.Payments.HandleWithdrawStart(ctx, chatID)
	case "history", "история":
		b.h.Payments.HandleHistory(ctx, chatID, userID)
	case "settings", "настройки":
		b.h.Payments.HandleSettings(ctx, chatID, userID)

	case "ref", "referrals", "рефералы":
		b.h.Referral.HandleReferrals(ctx, chatID, userID)

	case "games", "игры":
		b.games(chatID, func() { b.h.Games.HandleGames(ctx, chatID) })
	case "battle", "битва":
		b.games(chatID, func() { b.h.Games.HandleBattleMenu(ctx, chatID, userID) })
	case "dice", "кости":
		b.games(chatID, func() { b.h.Games.HandleDice(ctx, chatID, userID) })
	case "lottery", "лотерея":
		b.lottery(chatID, func() { b.h.Lottery.HandleLottery(ctx, chatID, userID) })

	case "admin", "login":
		if !b.h.Admin.HandleAdminCommand(ctx, chatID, userID) {
			b.unknown(chatID)
		}
	case "logout":
		if !b.h.Admin.HandleLogout(ctx, chatID, userID) {
			b.unknown(chatID)
		}

	default:
		b.unknown(chatID)
	}
}

// routeMenuButton обрабатывает кнопки постоянной клавиатуры.
func (b *Bot) routeMenuButton(ctx context.Context, chatID, userID int64, text string) bool {
	switch strings.TrimSpace(text) {
	case ui.BtnZoo:
		b.h.Zoo.HandleZoo(ctx, chatID, userID)
	case ui.BtnCollect:
		b.h.Zoo.HandleCollect(ctx, chatID, userID)
	case ui.BtnBalance:
		b.h.Wallet.HandleBalance(ctx, chatID, userID)
	case ui.BtnShop:
		b.h.Zoo.HandleShop(ctx, chatID)
	case ui.BtnGames:
		b.games(chatID, func() { b.h.Games.HandleGames(ctx, chatID) })
	case ui.BtnReferrals:
		b.h.Referral.HandleReferrals(ctx, chatID, userID)
	case ui.BtnSettings:
		b.h.Payments.HandleSettings(ctx, chatID, userID)
	default:
		return false
	}
	b.dialogs.Clear(userID)
	return true
}

// routeCallback разбирает callback data вида "prefix:arg1:arg2".
func (b *Bot) routeCallback(ctx context.Context, chatID, userID int64, data string) {
	parts := strings.Split(data, ":")
	prefix := parts[0]
	arg := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	log.WithFields(log.Fields{"user_id": userID, "data": data}).Debug("routing callback")

	switch prefix {
	case ui.CbShop:
		if rarity := arg(1); rarity != "" {
			b.h.Zoo.HandleShopCategory(ctx, chatID, domain.Rarity(rarity))
		} else {
			b.h.Zoo.HandleShop(ctx, chatID)
		}
	case ui.CbBuy:
		b.h.Zoo.HandleBuy(ctx, chatID, userID, arg(1))

	case ui.CbConvertStars:
		b.h.Wallet.HandleConvertStars(ctx, chatID, userID)
	case ui.CbConvertMoney:
		b.h.Wallet.HandleConvertMoney(ctx, chatID, userID)

	case ui.CbDeposit:
		if network := arg(1); network != "" {
			b.h.Payments.HandleDepositNetwork(ctx, chatID, userID, network)
		} else {
			b.h.Payments.HandleDepositStart(ctx, chatID)
		}
	case ui.CbWithdraw:
		if network := arg(1); network != "" {
			b.h.Payments.HandleWithdrawNetwork(ctx, chatID, userID, network)
		} else {
			b.h.Payments.HandleWithdrawStart(ctx, chatID)
		}
	case ui.CbSetAddress:
		b.h.Payments.HandleSetAddressStart(ctx, chatID, userID, arg(1))
	case ui.CbHistory:
		b.h.Payments.HandleHistory(ctx, chatID, userID)

	case ui.CbReferralStats:
		b.h.Referral.HandleReferrals(ctx, chatID, userID)

	case ui.CbBattle:
		b.games(chatID, func() { b.h.Games.HandleBattleMenu(ctx, chatID, userID) })
	case ui.CbBetUp, ui.CbBetDown:
		b.games(chatID, func() { b.h.Games.HandleBetChange(ctx, chatID, userID, prefix == ui.CbBetUp) })
	case ui.CbBattleStart:
		b.games(chatID, func() { b.h.Games.HandleBattle(ctx, chatID, userID) })
	case ui.CbDice:
		b.games(chatID, func() { b.h.Games.HandleDice(ctx, chatID, userID) })

	case ui.CbLottery:
		b.lottery(chatID, func() { b.h.Lottery.HandleLottery(ctx, chatID, userID) })
	case ui.CbLotteryBuy:
		b.lottery(chatID, func() { b.h.Lottery.HandleBuy(ctx, chatID, userID) })

	case ui.CbApprove, ui.CbReject:
		b.h.Admin.HandleResolve(ctx, chatID, userID, arg(1), prefix == ui.CbApprove)
	case ui.CbAdminPending:
		page, err := strconv.Atoi(arg(2))
		if err != nil {
			page = 1
		}
		b.h.Admin.HandlePending(ctx, chatID, userID, domain.TxKind(arg(1)), page)
	case ui.CbAdminStats:
		b.h.Admin.HandleStats(ctx, chatID, userID)
	case ui.CbAdminRate:
		b.h.Admin.HandleRateStart(ctx, chatID, userID, arg(1))

	case ui.CbBack:
		b.dialogs.Clear(userID)
		ui.Send(b.sender, chatID, "🏠 Главное меню", ui.MainMenu())

	default:
		log.WithField("data", data).Warn("Неизвестный callback")
	}
}

func (b *Bot) games(chatID int64, run func()) {
	if !b.cfg.FeatureGamesEnabled {
		ui.Send(b.sender, chatID, "🎮 Игры временно отключены", nil)
		return
	}
	run()
}

func (b *Bot) lottery(chatID int64, run func()) {
	if !b.cfg.FeatureLotteryEnabled {
		ui.Send(b.sender, chatID, "🎫 Лотерея временно отключена", nil)
		return
	}
	run()
}

func (b *Bot) unknown(chatID int64) {
	ui.Send(b.sender, chatID, "🤷 Неизвестная команда. Список команд: /help", ui.MainMenu())
}
