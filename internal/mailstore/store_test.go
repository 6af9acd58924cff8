package mailstore

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func submit(t *testing.T, s *Store, from, to, content string) Entry {
	t.Helper()
	e, err := s.Submit(Mail{From: from, To: to, Content: content})
	if err != nil {
		t.Fatalf("Submit(%s, %s, %q): %s", from, to, content, err)
	}
	return e
}

func contents(mails []Mail) []string {
	out := make([]string, 0, len(mails))
	for _, m := range mails {
		out = append(out, m.Content)
	}
	return out
}

// mustMails wraps a query so its result can be used inline:
// mustMails(t)(s.Unread("b")).
func mustMails(t *testing.T) func([]Mail, error) []Mail {
	return func(mails []Mail, err error) []Mail {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return mails
	}
}

func TestUnreadIsReturnedOnce(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "hi")

	got := mustMails(t)(s.Unread("b"))
	want := []Mail{{From: "a", To: "b", Content: "hi"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("first Unread = %v, want %v", got, want)
	}
	if got := mustMails(t)(s.Unread("b")); len(got) != 0 {
		t.Fatalf("second Unread = %v, want empty", got)
	}
}

func TestUnreadNewestFirst(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 5; i++ {
		submit(t, s, "a", "b", fmt.Sprint(i))
	}
	got := contents(mustMails(t)(s.Unread("b")))
	if want := []string{"5", "4", "3", "2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread = %v, want %v", got, want)
	}
}

func TestSentLimit(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "a", "b", "2")
	submit(t, s, "a", "b", "3")

	got := contents(mustMails(t)(s.Sent("a", 2)))
	if want := []string{"3", "2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Sent(2) = %v, want %v", got, want)
	}
	got = contents(mustMails(t)(s.Sent("a", 10)))
	if want := []string{"3", "2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Sent(10) = %v, want %v", got, want)
	}
	if got := mustMails(t)(s.Sent("a", 0)); len(got) != 0 {
		t.Fatalf("Sent(0) = %v, want empty", got)
	}

	// Reading sent mail must not touch the recipient's unread mail.
	if got := mustMails(t)(s.Unread("b")); len(got) != 3 {
		t.Fatalf("Unread(b) returned %d mails, want 3", len(got))
	}
}

func TestReceivedMarksRead(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "c", "b", "2")
	submit(t, s, "a", "b", "3")

	got := contents(mustMails(t)(s.Received("b", 2)))
	if want := []string{"3", "2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Received(2) = %v, want %v", got, want)
	}
	got = contents(mustMails(t)(s.Unread("b")))
	if want := []string{"1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread after Received(2) = %v, want %v", got, want)
	}
	// Already read entries can be received again.
	got = contents(mustMails(t)(s.Received("b", 3)))
	if want := []string{"3", "2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Received(3) = %v, want %v", got, want)
	}
}

func TestAllMergesSentAndReceived(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "b", "a", "2")
	submit(t, s, "a", "c", "3")
	submit(t, s, "c", "a", "4")
	submit(t, s, "b", "c", "not a's")

	got := contents(mustMails(t)(s.All("a", 10)))
	if want := []string{"4", "3", "2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All(10) = %v, want %v", got, want)
	}
	got = contents(mustMails(t)(s.All("a", 3)))
	if want := []string{"4", "3", "2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All(3) = %v, want %v", got, want)
	}
	// "2" and "4" were returned, so nothing is left unread for a.
	if got := mustMails(t)(s.Unread("a")); len(got) != 0 {
		t.Fatalf("Unread(a) = %v, want empty", got)
	}
}

func TestAllPartialMarksRead(t *testing.T) {
	s := NewStore()
	submit(t, s, "b", "a", "1")
	submit(t, s, "b", "a", "2")
	submit(t, s, "a", "b", "3")

	got := contents(mustMails(t)(s.All("a", 2)))
	if want := []string{"3", "2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All(2) = %v, want %v", got, want)
	}
	got = contents(mustMails(t)(s.Unread("a")))
	if want := []string{"1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread(a) = %v, want %v", got, want)
	}
}

func TestCorrespondence(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "b", "a", "2")
	submit(t, s, "a", "c", "other")
	submit(t, s, "a", "b", "3")
	submit(t, s, "b", "a", "4")

	got := contents(mustMails(t)(s.Correspondence("a", "b", 4)))
	if want := []string{"4", "3", "2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Correspondence(a, b, 4) = %v, want %v", got, want)
	}
	got = contents(mustMails(t)(s.Correspondence("a", "b", 2)))
	if want := []string{"4", "3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Correspondence(a, b, 2) = %v, want %v", got, want)
	}
	if got := mustMails(t)(s.Correspondence("a", "nobody", 5)); len(got) != 0 {
		t.Fatalf("Correspondence(a, nobody) = %v, want empty", got)
	}
}

func TestCorrespondenceMarksOnlyReceivedRead(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "b", "a", "2")

	mustMails(t)(s.Correspondence("a", "b", 2))
	if got := mustMails(t)(s.Unread("a")); len(got) != 0 {
		t.Fatalf("Unread(a) = %v, want empty", got)
	}
	got := contents(mustMails(t)(s.Unread("b")))
	if want := []string{"1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread(b) = %v, want %v", got, want)
	}
}

func TestContactsSortedAndUnique(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "zed", "1")
	submit(t, s, "mike", "a", "2")
	submit(t, s, "a", "bob", "3")
	submit(t, s, "a", "zed", "4")
	submit(t, s, "zed", "a", "5")

	got, err := s.Contacts("a")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"bob", "mike", "zed"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Contacts(a) = %v, want %v", got, want)
	}
}

func TestUnknownAddressIsEmpty(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "hi")

	contacts, err := s.Contacts("z")
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 0 {
		t.Fatalf("Contacts(z) = %v, want empty", contacts)
	}
	if got := mustMails(t)(s.All("z", 5)); len(got) != 0 {
		t.Fatalf("All(z, 5) = %v, want empty", got)
	}
	if got := mustMails(t)(s.Unread("z")); len(got) != 0 {
		t.Fatalf("Unread(z) = %v, want empty", got)
	}
}

func TestSelfMail(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "a", "note")
	submit(t, s, "b", "a", "hello")

	got := contents(mustMails(t)(s.All("a", 10)))
	if want := []string{"hello", "note"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All(a) = %v, want %v", got, want)
	}
	contacts, _ := s.Contacts("a")
	if want := []string{"b"}; !reflect.DeepEqual(contacts, want) {
		t.Fatalf("Contacts(a) = %v, want %v", contacts, want)
	}
	if got := mustMails(t)(s.Correspondence("a", "a", 10)); len(got) != 0 {
		t.Fatalf("Correspondence(a, a) = %v, want empty", got)
	}
	if got := contents(mustMails(t)(s.Sent("a", 10))); !reflect.DeepEqual(got, []string{"note"}) {
		t.Fatalf("Sent(a) = %v, want [note]", got)
	}
}

func TestSelfMailSingleUnreadSlot(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "a", "note")

	// Sent mail has no read state, even when sent to self.
	mustMails(t)(s.Sent("a", 1))
	got := contents(mustMails(t)(s.Unread("a")))
	if want := []string{"note"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread(a) = %v, want %v", got, want)
	}
	if got := contents(mustMails(t)(s.Received("a", 5))); !reflect.DeepEqual(got, []string{"note"}) {
		t.Fatalf("Received(a) = %v, want [note]", got)
	}
}

func TestIdenticalMailsAreDistinct(t *testing.T) {
	s := NewStore()
	first := submit(t, s, "a", "b", "same")
	second := submit(t, s, "a", "b", "same")
	if first.ID >= second.ID {
		t.Fatalf("IDs not increasing: %d then %d", first.ID, second.ID)
	}
	if got := mustMails(t)(s.Unread("b")); len(got) != 2 {
		t.Fatalf("Unread(b) returned %d mails, want 2", len(got))
	}
}

func TestContractViolations(t *testing.T) {
	s := NewStore()
	for _, tc := range []struct {
		name string
		mail Mail
		want error
	}{
		{"empty from", Mail{To: "b", Content: "x"}, ErrInvalidAddress},
		{"empty to", Mail{From: "a", Content: "x"}, ErrInvalidAddress},
		{"space in address", Mail{From: "a b", To: "c", Content: "x"}, ErrInvalidAddress},
		{"overlong address", Mail{From: "a", To: strings.Repeat("b", MaxAddressLength+1), Content: "x"}, ErrInvalidAddress},
		{"empty content", Mail{From: "a", To: "b"}, ErrInvalidMail},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Submit(tc.mail); !errors.Is(err, tc.want) {
				t.Fatalf("Submit() error = %v, want %v", err, tc.want)
			}
		})
	}
	if s.Len() != 0 {
		t.Fatalf("rejected submits changed the history: %d entries", s.Len())
	}
	if len(s.Addresses()) != 0 {
		t.Fatalf("rejected submits created mailboxes: %v", s.Addresses())
	}

	if _, err := s.Sent("a", -1); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("Sent(-1) error = %v", err)
	}
	if _, err := s.Correspondence("a", "", 1); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Correspondence with empty other error = %v", err)
	}
	if _, err := s.Unread(""); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Unread(\"\") error = %v", err)
	}
}

func TestBoundedQueriesOrdered(t *testing.T) {
	s := NewStore()
	addrs := []string{"a", "b", "c"}
	for i := 0; i < 40; i++ {
		from, to := addrs[i%3], addrs[(i*7+1)%3]
		submit(t, s, from, to, fmt.Sprint(i))
	}
	ids := make(map[string]uint64)
	for _, e := range s.History() {
		ids[e.Mail.Content] = e.ID
	}
	check := func(name string, mails []Mail, n int) {
		t.Helper()
		if len(mails) > n {
			t.Fatalf("%s returned %d mails, limit %d", name, len(mails), n)
		}
		for i := 1; i < len(mails); i++ {
			if ids[mails[i-1].Content] <= ids[mails[i].Content] {
				t.Fatalf("%s not in descending order: %v", name, contents(mails))
			}
		}
	}
	for _, addr := range addrs {
		for _, n := range []int{0, 1, 5, 100} {
			check("Sent", mustMails(t)(s.Sent(addr, n)), n)
			check("Received", mustMails(t)(s.Received(addr, n)), n)
			check("All", mustMails(t)(s.All(addr, n)), n)
			for _, other := range addrs {
				check("Correspondence", mustMails(t)(s.Correspondence(addr, other, n)), n)
			}
		}
	}
}

func TestReplayRestoresState(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	submit(t, s, "b", "a", "2")
	submit(t, s, "a", "b", "3")
	submit(t, s, "c", "b", "4")
	submit(t, s, "a", "a", "5")
	mustMails(t)(s.Received("b", 1))
	mustMails(t)(s.Unread("a"))

	restored := NewStore()
	if err := restored.Replay(s.History()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(restored.History(), s.History()) {
		t.Fatalf("history differs after replay:\n%v\n%v", restored.History(), s.History())
	}
	for _, addr := range []string{"a", "b", "c"} {
		want, _ := s.Contacts(addr)
		got, _ := restored.Contacts(addr)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Contacts(%s) = %v, want %v", addr, got, want)
		}
	}
	got := contents(mustMails(t)(restored.Unread("b")))
	if want := []string{"3", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread(b) after replay = %v, want %v", got, want)
	}
	if got := mustMails(t)(restored.Unread("a")); len(got) != 0 {
		t.Fatalf("Unread(a) after replay = %v, want empty", got)
	}

	next := submit(t, restored, "c", "a", "6")
	if next.ID != 6 {
		t.Fatalf("first ID after replay = %d, want 6", next.ID)
	}
}

func TestReplayFiveEntriesTwoUnread(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 5; i++ {
		submit(t, s, "a", "b", fmt.Sprint(i))
	}
	mustMails(t)(s.Received("b", 3))

	restored := NewStore()
	if err := restored.Replay(s.History()); err != nil {
		t.Fatal(err)
	}
	mb, ok := restored.Mailbox("b")
	if !ok || mb.Owner() != "b" {
		t.Fatalf("Mailbox(b) = %v, %v after replay", mb, ok)
	}
	if n := mb.UnreadCount(); n != 2 {
		t.Fatalf("UnreadCount() after replay = %d, want 2", n)
	}
	got := contents(mustMails(t)(restored.Unread("b")))
	if want := []string{"2", "1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Unread(b) = %v, want %v", got, want)
	}
	if n := mb.UnreadCount(); n != 0 {
		t.Fatalf("UnreadCount() after Unread = %d, want 0", n)
	}
}

func TestReplayRejectsCorruptHistory(t *testing.T) {
	for _, tc := range []struct {
		name    string
		history []Entry
	}{
		{"duplicate id", []Entry{
			{ID: 1, Mail: Mail{From: "a", To: "b", Content: "1"}},
			{ID: 1, Mail: Mail{From: "a", To: "b", Content: "2"}},
		}},
		{"decreasing id", []Entry{
			{ID: 5, Mail: Mail{From: "a", To: "b", Content: "1"}},
			{ID: 2, Mail: Mail{From: "a", To: "b", Content: "2"}},
		}},
		{"zero id", []Entry{
			{ID: 0, Mail: Mail{From: "a", To: "b", Content: "1"}},
		}},
		{"invalid mail", []Entry{
			{ID: 1, Mail: Mail{From: "", To: "b", Content: "1"}},
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			submit(t, s, "x", "y", "before")
			if err := s.Replay(tc.history); !errors.Is(err, ErrCorruptHistory) {
				t.Fatalf("Replay() error = %v, want ErrCorruptHistory", err)
			}
			if s.Len() != 0 {
				t.Fatalf("store not empty after failed replay: %d entries", s.Len())
			}
		})
	}
}

func TestReset(t *testing.T) {
	s := NewStore()
	submit(t, s, "a", "b", "1")
	s.Reset()
	if s.Len() != 0 || len(s.Addresses()) != 0 {
		t.Fatalf("Reset left %d entries and mailboxes %v", s.Len(), s.Addresses())
	}
	if e := submit(t, s, "a", "b", "2"); e.ID != 1 {
		t.Fatalf("first ID after Reset = %d, want 1", e.ID)
	}
}
