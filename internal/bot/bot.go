package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"family-tasks/internal/model"
	"family-tasks/internal/repository"
	"family-tasks/internal/service"
	"family-tasks/internal/store"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageAssignee
	stageDueDate
	stageRecurring
)

const (
	cbTogglePrefix = "toggle:"
	cbDeletePrefix = "delete:"
	cbUndo         = "undo"
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// messenger is the part of the Telegram API the bot writes through.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the chat surface over the shared task store.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           messenger
	subscribers   *repository.SubscriberRepository
	tasks         *service.TaskService
	family        *service.FamilyService
	digests       *service.DigestService
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, subscribers *repository.SubscriberRepository, tasks *service.TaskService, family *service.FamilyService, digests *service.DigestService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, subscribers, tasks, family, digests)
	b.api = api
	return b, nil
}

func newBot(out messenger, subscribers *repository.SubscriberRepository, tasks *service.TaskService, family *service.FamilyService, digests *service.DigestService) *Bot {
	return &Bot{
		out:           out,
		subscribers:   subscribers,
		tasks:         tasks,
		family:        family,
		digests:       digests,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot has no telegram connection")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ New task cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.sendTaskList(msg.Chat.ID)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "undo":
		return b.undoAndRefresh(ctx, msg.Chat.ID)
	case "stats":
		return b.handleStats(msg)
	case "family":
		return b.handleFamily(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ New task cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.subscribers.UpsertFromTelegram(ctx, msg.Chat.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		return err
	}
	log.Printf("[info] chat %d subscribed to digests", msg.Chat.ID)

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of the family chores.</b>\n"+
		"This chat will now get the family digest. Send /stop to opt out.\n\n%s",
		escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.subscribers.Remove(ctx, msg.Chat.ID); err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, "🔕 This chat will no longer get digests. Send /start to subscribe again.")
}

const helpText = "Commands:\n" +
	"• /tasks — all tasks with buttons\n" +
	"• /newtask — add a task step by step\n" +
	"• /done &lt;n&gt; — mark task number n as done\n" +
	"• /delete &lt;n&gt; — delete task number n\n" +
	"• /undo — bring back the last deleted task\n" +
	"• /stats — completion overview\n" +
	"• /family — progress per family member\n" +
	"• /report — the family digest right now\n" +
	"• /cancel — stop adding a task"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleStats(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, formatStats(b.tasks.Stats()))
}

func (b *Bot) handleFamily(ctx context.Context, msg *tgbotapi.Message) error {
	roster, err := b.family.Roster(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load the family: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, formatRoster(roster))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.digests.DailySummary(ctx, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what needs doing?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty. What needs doing?", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageAssignee
		names, err := b.family.Names(ctx)
		if err != nil {
			log.Printf("load roster: %v", err)
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "👤 Who is it for? Pick someone or type a name.", assigneeKeyboard(names))
	case stageAssignee:
		if text == "" {
			return b.sendText(msg.Chat.ID, "Please name who the task is for.")
		}
		state.input.Assignee = text
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📅 When is it due? Use <code>2025-11-30</code>, «today» or «tomorrow».", dueDateKeyboard())
	case stageDueDate:
		due, err := parseDueInput(text, b.now())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "I cannot read that date. Use <code>2025-11-30</code>, «today» or «tomorrow».", dueDateKeyboard())
		}
		state.input.DueDate = due.String()
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 How often does it repeat?", recurrenceKeyboard())
	case stageRecurring:
		recurring, err := model.ParseRecurrence(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the options below.", recurrenceKeyboard())
		}
		state.input.Recurring = string(recurring)
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Conversation reset. Try /newtask again.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.tasks.CreateTask(ctx, input)
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%s assignee=%s recurring=%s", task.ID, task.Assignee, task.Recurring)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>For:</b> %s\n", escape(task.Assignee)))
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate))
	summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", task.Recurring))

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(msg, "/done 2")
	if !ok {
		return err
	}
	if task.IsCompleted() {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("«%s» is already done.", escape(task.Title)))
	}
	return b.toggleTaskAndRefresh(ctx, msg.Chat.ID, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(msg, "/delete 2")
	if !ok {
		return err
	}
	return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, task.ID)
}

// taskFromArgs resolves the 1-based list position in the command arguments.
// When ok is false the user has already been told what went wrong.
func (b *Bot) taskFromArgs(msg *tgbotapi.Message, example string) (model.Task, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return model.Task{}, false, b.sendText(msg.Chat.ID, fmt.Sprintf("Give the task number from /tasks, e.g. %s", example))
	}
	n, err := strconv.Atoi(args)
	if err != nil {
		return model.Task{}, false, b.sendText(msg.Chat.ID, "The task number must be a number.")
	}
	tasks := b.tasks.ListTasks(store.Filter{})
	if n < 1 || n > len(tasks) {
		return model.Task{}, false, b.sendText(msg.Chat.ID, fmt.Sprintf("There is no task %d. See /tasks.", n))
	}
	return tasks[n-1], true, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		log.Printf("[info] callback toggle user=%d task=%s", cb.From.ID, strings.TrimPrefix(data, cbTogglePrefix))
		return b.toggleTaskAndRefresh(ctx, chatID, strings.TrimPrefix(data, cbTogglePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		log.Printf("[info] callback delete user=%d task=%s", cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix))
		return b.deleteTaskAndRefresh(ctx, chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case data == cbUndo:
		log.Printf("[info] callback undo user=%d", cb.From.ID)
		return b.undoAndRefresh(ctx, chatID)
	default:
		return nil
	}
}

func (b *Bot) toggleTaskAndRefresh(ctx context.Context, chatID int64, id string) error {
	task, err := b.tasks.ToggleTask(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return b.sendText(chatID, "That task no longer exists.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	var info string
	if task.IsCompleted() {
		info = fmt.Sprintf("✅ «%s» is done. Nice work, %s!", escape(task.Title), escape(task.Assignee))
	} else {
		info = fmt.Sprintf("↩️ «%s» is pending again.", escape(task.Title))
	}
	log.Printf("[info] task toggled id=%s status=%s", task.ID, task.Status)
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, id string) error {
	task, err := b.tasks.DeleteTask(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return b.sendText(chatID, "That task no longer exists.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%s", task.ID)
	text := fmt.Sprintf("🗑 «%s» deleted. Changed your mind? Press undo or send /undo.", escape(task.Title))
	if err := b.sendWithReplyMarkup(chatID, text, undoKeyboard()); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) undoAndRefresh(ctx context.Context, chatID int64) error {
	task, ok := b.tasks.Undo(ctx)
	if !ok {
		return b.sendText(chatID, "Nothing to undo.")
	}
	log.Printf("[info] task restored id=%s", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("♻️ «%s» is back.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(chatID)
}

func (b *Bot) sendTaskList(chatID int64) error {
	tasks := b.tasks.ListTasks(store.Filter{})
	if len(tasks) == 0 {
		return b.sendText(chatID, "No tasks yet. Add one with /newtask.")
	}

	text := formatTaskList(tasks, b.tasks.Stats(), b.now())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = taskListKeyboard(tasks)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.out.Send(msg)
	return err
}

// SendReports pushes the current digest to every subscribed chat.
func (b *Bot) SendReports(ctx context.Context) error {
	subs, err := b.subscribers.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	text, err := b.digests.DailySummary(ctx, b.now())
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(sub.ChatID, text); err != nil {
			log.Printf("send digest to %d: %v", sub.ChatID, err)
		}
	}
	log.Printf("[info] digest sent to %d chat(s)", len(subs))
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(msg.Chat.ID)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(msg)
	case strings.ToLower(menuLabelFamily):
		return true, b.handleFamily(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func parseDueInput(text string, now time.Time) (model.Date, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "today", strings.ToLower(btnToday):
		return model.DateOf(now), nil
	case "tomorrow", strings.ToLower(btnTomorrow):
		return model.DateOf(now).AddDays(1), nil
	}
	return model.ParseDate(text)
}
