package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/relaybot/relay/store"

	tele "gopkg.in/telebot.v4"
)

const testAdminID int64 = 999

// fakeContext implements the handful of tele.Context methods the handlers
// touch. Anything else panics through the embedded nil interface.
type fakeContext struct {
	tele.Context
	sender  *tele.User
	chat    *tele.Chat
	text    string
	msg     *tele.Message
	kv      map[string]interface{}
	sent    []string
	sendErr error
}

func newFakeContext(sender *tele.User, text string) *fakeContext {
	return &fakeContext{
		sender: sender,
		chat:   &tele.Chat{ID: sender.ID},
		text:   text,
		kv:     map[string]interface{}{},
	}
}

func (c *fakeContext) Update() tele.Update { return tele.Update{ID: 1} }
func (c *fakeContext) Sender() *tele.User  { return c.sender }
func (c *fakeContext) Chat() *tele.Chat    { return c.chat }
func (c *fakeContext) Text() string        { return c.text }
func (c *fakeContext) Message() *tele.Message {
	if c.msg != nil {
		return c.msg
	}
	return &tele.Message{Text: c.text, Sender: c.sender, Chat: c.chat}
}
func (c *fakeContext) Get(key string) interface{}      { return c.kv[key] }
func (c *fakeContext) Set(key string, v interface{})   { c.kv[key] = v }
func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func (c *fakeContext) lastSent(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no reply was sent")
	}
	return c.sent[len(c.sent)-1]
}

type outbound struct {
	to   int64
	text string
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []outbound
	failTo map[int64]error
	nextID int
}

func (f *fakeTransport) Send(to int64, text string, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTo[to]; ok {
		return nil, err
	}
	f.nextID++
	f.sent = append(f.sent, outbound{to: to, text: text})
	return &tele.Message{ID: f.nextID}, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]store.User
	err   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]store.User{}}
}

func (f *fakeUsers) Upsert(_ context.Context, u store.User) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	return len(f.users), f.err
}

func (f *fakeUsers) ListAll(context.Context) ([]store.User, error) {
	var out []store.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, f.err
}

func (f *fakeUsers) IDs(context.Context) ([]int64, error) {
	var out []int64
	for id := range f.users {
		out = append(out, id)
	}
	return out, f.err
}

type fakeNotes struct {
	records map[int64]int64
	err     error
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{records: map[int64]int64{}}
}

func (f *fakeNotes) Record(_ context.Context, messageID, userID int64) error {
	if f.err != nil {
		return f.err
	}
	f.records[messageID] = userID
	return nil
}

func (f *fakeNotes) SenderOf(_ context.Context, messageID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	userID, ok := f.records[messageID]
	if !ok {
		return 0, store.ErrUnknownMessage
	}
	return userID, nil
}

func testApp(t *testing.T) (*App, *fakeUsers, *fakeNotes, *fakeTransport) {
	t.Helper()
	cfg := &Config{}
	cfg.Core.Telegram.AdminID = testAdminID
	cfg.Relay.Texts = DefaultTexts()
	cfg.Relay.SocialLinksURL = "https://example.com/links"

	users := newFakeUsers()
	notes := newFakeNotes()
	tr := &fakeTransport{}
	app := NewApp(cfg, users, notes)
	app.SetTransport(tr)
	return app, users, notes, tr
}

func regularUser() *tele.User {
	return &tele.User{ID: 42, Username: "alice", FirstName: "Alice"}
}

func adminUser() *tele.User {
	return &tele.User{ID: testAdminID, Username: "boss", FirstName: "Boss"}
}

func TestStartRegistersUser(t *testing.T) {
	app, users, _, _ := testApp(t)
	c := newFakeContext(regularUser(), "/start")

	if err := app.handleStart(c); err != nil {
		t.Fatalf("handleStart: %v", err)
	}

	if _, ok := users.users[42]; !ok {
		t.Fatal("user was not registered")
	}
	if got := c.lastSent(t); !strings.Contains(got, "Alice") {
		t.Fatalf("welcome %q does not greet the user", got)
	}
}

func TestStartResetsActiveConversation(t *testing.T) {
	app, _, _, _ := testApp(t)
	user := regularUser()

	if err := app.startCompose(newFakeContext(user, "")); err != nil {
		t.Fatalf("startCompose: %v", err)
	}
	if !app.sessions.InProgress(user.ID) {
		t.Fatal("compose state not set")
	}

	if err := app.handleStart(newFakeContext(user, "/start")); err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	if app.sessions.InProgress(user.ID) {
		t.Fatal("/start must reset the conversation")
	}
}

func TestComposeFlowForwardsToAdmin(t *testing.T) {
	app, _, notes, tr := testApp(t)
	user := regularUser()

	if err := app.startCompose(newFakeContext(user, "")); err != nil {
		t.Fatalf("startCompose: %v", err)
	}

	c := newFakeContext(user, "please help")
	if err := app.awaitingMessage(c); err != nil {
		t.Fatalf("awaitingMessage: %v", err)
	}

	if len(tr.sent) != 1 || tr.sent[0].to != testAdminID {
		t.Fatalf("notification not sent to admin: %+v", tr.sent)
	}
	if !strings.Contains(tr.sent[0].text, "please help") {
		t.Fatalf("notification missing body: %q", tr.sent[0].text)
	}
	if !strings.Contains(tr.sent[0].text, "ID: `42`") {
		t.Fatalf("notification missing sender id: %q", tr.sent[0].text)
	}

	if got := notes.records[int64(tr.nextID)]; got != 42 {
		t.Fatalf("notification record = %d, want 42", got)
	}
	if app.sessions.InProgress(user.ID) {
		t.Fatal("session must end after the message")
	}
	if got := c.lastSent(t); got != DefaultTexts().MessageSent {
		t.Fatalf("confirmation = %q", got)
	}
}

func TestComposeCancel(t *testing.T) {
	app, _, _, tr := testApp(t)
	user := regularUser()

	_ = app.startCompose(newFakeContext(user, ""))
	c := newFakeContext(user, DefaultTexts().Cancel)
	if err := app.awaitingMessage(c); err != nil {
		t.Fatalf("awaitingMessage: %v", err)
	}

	if len(tr.sent) != 0 {
		t.Fatal("cancel must not forward anything")
	}
	if app.sessions.InProgress(user.ID) {
		t.Fatal("cancel must clear the session")
	}
	if got := c.lastSent(t); got != DefaultTexts().Cancelled {
		t.Fatalf("reply = %q", got)
	}
}

func TestComposeDeliveryFailure(t *testing.T) {
	app, _, _, tr := testApp(t)
	tr.failTo = map[int64]error{testAdminID: errors.New("telegram down")}
	user := regularUser()

	_ = app.startCompose(newFakeContext(user, ""))
	c := newFakeContext(user, "hello")
	if err := app.awaitingMessage(c); err != nil {
		t.Fatalf("awaitingMessage must swallow delivery errors, got %v", err)
	}

	if got := c.lastSent(t); got != DefaultTexts().MessageFailed {
		t.Fatalf("reply = %q, want failure notice", got)
	}
	if app.sessions.InProgress(user.ID) {
		t.Fatal("session must end even on failure")
	}
}

func TestBroadcastDeniedSilentlyForNonAdmin(t *testing.T) {
	app, _, _, _ := testApp(t)
	c := newFakeContext(regularUser(), "")

	if err := app.startBroadcast(c); err != nil {
		t.Fatalf("startBroadcast: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("non-admin got a reply: %v", c.sent)
	}
	if app.sessions.InProgress(42) {
		t.Fatal("non-admin must not enter broadcast state")
	}
}

func TestBroadcastFlow(t *testing.T) {
	app, users, _, tr := testApp(t)
	for _, id := range []int64{1, 2, 3} {
		users.users[id] = store.User{ID: id}
	}

	admin := adminUser()
	if err := app.startBroadcast(newFakeContext(admin, "")); err != nil {
		t.Fatalf("startBroadcast: %v", err)
	}
	if !app.sessions.InProgress(admin.ID) {
		t.Fatal("broadcast state not set")
	}

	c := newFakeContext(admin, "maintenance tonight")
	if err := app.awaitingBroadcast(c); err != nil {
		t.Fatalf("awaitingBroadcast: %v", err)
	}

	if len(tr.sent) != 3 {
		t.Fatalf("delivered %d messages, want 3", len(tr.sent))
	}
	if got := c.lastSent(t); !strings.Contains(got, "3 delivered") {
		t.Fatalf("summary = %q", got)
	}
	if app.sessions.InProgress(admin.ID) {
		t.Fatal("session must end after the broadcast")
	}
}

func TestBroadcastReportsFailures(t *testing.T) {
	app, users, _, tr := testApp(t)
	for _, id := range []int64{1, 2, 3} {
		users.users[id] = store.User{ID: id}
	}
	tr.failTo = map[int64]error{2: errors.New("blocked")}

	admin := adminUser()
	_ = app.startBroadcast(newFakeContext(admin, ""))
	c := newFakeContext(admin, "hello all")
	if err := app.awaitingBroadcast(c); err != nil {
		t.Fatalf("awaitingBroadcast: %v", err)
	}

	if got := c.lastSent(t); !strings.Contains(got, "2 delivered") || !strings.Contains(got, "1 failed") {
		t.Fatalf("summary = %q", got)
	}
}

func TestAdminReplyUsesRecordedCorrelation(t *testing.T) {
	app, _, notes, tr := testApp(t)
	notes.records[777] = 42

	c := newFakeContext(adminUser(), "here is your answer")
	c.msg = &tele.Message{
		Text:    "here is your answer",
		Sender:  adminUser(),
		ReplyTo: &tele.Message{ID: 777, Text: "unrelated"},
	}

	if err := app.handleFallback(c); err != nil {
		t.Fatalf("handleFallback: %v", err)
	}

	if len(tr.sent) != 1 || tr.sent[0].to != 42 {
		t.Fatalf("reply not routed to sender: %+v", tr.sent)
	}
	if !strings.Contains(tr.sent[0].text, "here is your answer") {
		t.Fatalf("reply text = %q", tr.sent[0].text)
	}
	if got := c.lastSent(t); got != DefaultTexts().ReplyDelivered {
		t.Fatalf("confirmation = %q", got)
	}
}

func TestAdminReplyFallsBackToTextDecoding(t *testing.T) {
	app, _, _, tr := testApp(t)

	c := newFakeContext(adminUser(), "answer")
	c.msg = &tele.Message{
		Text:    "answer",
		Sender:  adminUser(),
		ReplyTo: &tele.Message{ID: 888, Text: "New message\n\nFrom: Bob\nID: 42\n\nMessage:\nhi"},
	}

	if err := app.handleFallback(c); err != nil {
		t.Fatalf("handleFallback: %v", err)
	}
	if len(tr.sent) != 1 || tr.sent[0].to != 42 {
		t.Fatalf("decoded reply not delivered: %+v", tr.sent)
	}
}

func TestAdminReplyCorrelationFailure(t *testing.T) {
	app, _, _, tr := testApp(t)

	c := newFakeContext(adminUser(), "answer")
	c.msg = &tele.Message{
		Text:    "answer",
		Sender:  adminUser(),
		ReplyTo: &tele.Message{ID: 888, Text: "no id anywhere"},
	}

	if err := app.handleFallback(c); err != nil {
		t.Fatalf("handleFallback must swallow correlation failures, got %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatalf("nothing should be delivered: %+v", tr.sent)
	}
	if got := c.lastSent(t); got != DefaultTexts().ReplyFailed {
		t.Fatalf("reply = %q", got)
	}
}

func TestFallbackShowsMenu(t *testing.T) {
	app, _, _, _ := testApp(t)
	c := newFakeContext(regularUser(), "random text")

	if err := app.handleFallback(c); err != nil {
		t.Fatalf("handleFallback: %v", err)
	}
	if got := c.lastSent(t); got != DefaultTexts().MenuPrompt {
		t.Fatalf("reply = %q", got)
	}
}

func TestPanelDeniesNonAdmin(t *testing.T) {
	app, _, _, _ := testApp(t)
	c := newFakeContext(regularUser(), "/panel")

	if err := app.handlePanel(c); err != nil {
		t.Fatalf("handlePanel: %v", err)
	}
	if got := c.lastSent(t); got != DefaultTexts().AccessDenied {
		t.Fatalf("reply = %q, want denial", got)
	}
}

func TestPanelSummary(t *testing.T) {
	app, users, _, _ := testApp(t)
	users.users[1] = store.User{ID: 1}
	users.users[2] = store.User{ID: 2}

	c := newFakeContext(adminUser(), "/panel")
	if err := app.handlePanel(c); err != nil {
		t.Fatalf("handlePanel: %v", err)
	}
	if got := c.lastSent(t); !strings.Contains(got, "2") {
		t.Fatalf("summary = %q", got)
	}
}

func TestUsersListFormatting(t *testing.T) {
	app, users, _, _ := testApp(t)
	users.users[42] = store.User{ID: 42, Username: "alice", FirstName: "Alice"}

	c := newFakeContext(adminUser(), "/users")
	if err := app.handleUsers(c); err != nil {
		t.Fatalf("handleUsers: %v", err)
	}
	got := c.lastSent(t)
	if !strings.Contains(got, "@alice") || !strings.Contains(got, "(ID: 42)") {
		t.Fatalf("listing = %q", got)
	}
}

func TestUsersListEmpty(t *testing.T) {
	app, _, _, _ := testApp(t)
	c := newFakeContext(adminUser(), "/users")
	if err := app.handleUsers(c); err != nil {
		t.Fatalf("handleUsers: %v", err)
	}
	if got := c.lastSent(t); got != DefaultTexts().UsersEmpty {
		t.Fatalf("reply = %q", got)
	}
}

func TestSocialLinks(t *testing.T) {
	app, _, _, _ := testApp(t)
	c := newFakeContext(regularUser(), "")
	if err := app.handleSocial(c); err != nil {
		t.Fatalf("handleSocial: %v", err)
	}
	if got := c.lastSent(t); got != "https://example.com/links" {
		t.Fatalf("reply = %q", got)
	}
}
