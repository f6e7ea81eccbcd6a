package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attbot/internal/candidate"
)

// fakeSite mimics the attendance site's auth flow: takelogin.php sets a
// session cookie and redirects to attendance.php on good credentials, or
// bounces back to login.php on bad ones; attendance.php requires the cookie.
func fakeSite(t *testing.T, quizHTML string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login</html>"))
	})
	mux.HandleFunc("/takelogin.php", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostFormValue("username") == "alice" && r.PostFormValue("password") == "pwd" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
			http.Redirect(w, r, "/attendance.php", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/login.php", http.StatusFound)
	})
	mux.HandleFunc("/attendance.php", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login.php", http.StatusFound)
			return
		}
		if r.Method == http.MethodPost {
			r.ParseForm()
			if r.PostFormValue("answer") == "" {
				http.Error(w, "missing answer", http.StatusBadRequest)
				return
			}
			w.Write([]byte("<html>attended</html>"))
			return
		}
		w.Write([]byte(quizHTML))
	})
	mux.HandleFunc("/poster.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "17069")
		w.Write(make([]byte, 17069))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const quizPage = `<html><body>
<form method="post" action="attendance.php">
  <img src="/poster.jpg" alt="poster"/>
  <input type="radio" name="answer" value="11-0"/> 三体
  <input type="radio" name="answer" value="11-1"/> 嘻嘻
  <input type="submit" value="go"/>
</form>
</body></html>`

func newTestSession(t *testing.T, srv *httptest.Server, name, pwd, cookiePath string) *Session {
	t.Helper()
	s, err := NewSession(Credential{Name: name, Password: pwd},
		DefaultEndpoints(srv.URL), cookiePath, nil)
	require.NoError(t, err)
	return s
}

func TestLoginSuccess(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "pwd", "")
	require.NoError(t, s.Login(context.Background()))
}

func TestLoginBadCredentialIsFatal(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "wrong", "")
	err := s.Login(context.Background())
	assert.ErrorIs(t, err, ErrCredential)
}

func TestEnsureLoggedInLogsInWhenCookiesMissing(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "pwd", "")
	require.NoError(t, s.EnsureLoggedIn(context.Background()))

	// Second call rides the existing cookie; no login POST needed.
	require.NoError(t, s.EnsureLoggedIn(context.Background()))
}

func TestCookiePersistenceRoundTrip(t *testing.T) {
	srv := fakeSite(t, quizPage)
	path := filepath.Join(t.TempDir(), "alice_cookie.json")

	s := newTestSession(t, srv, "alice", "pwd", path)
	require.NoError(t, s.Login(context.Background()))
	require.NoError(t, s.Close())

	// A fresh session with the persisted jar is already authenticated.
	s2 := newTestSession(t, srv, "alice", "wrong-now", path)
	require.NoError(t, s2.EnsureLoggedIn(context.Background()),
		"persisted cookies must authenticate without a login POST")
}

func TestFetchQuestion(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "pwd", "")
	require.NoError(t, s.Login(context.Background()))

	q, err := s.FetchQuestion(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 17069, q.Poster.ByteLength)
	assert.Equal(t, srv.URL+"/poster.jpg", q.Poster.URL)
	require.Len(t, q.Options, 2)
	assert.Equal(t, "三体", q.Options[0].Title)
	assert.Equal(t, "11-0", q.Options[0].Value)
	assert.Equal(t, "嘻嘻", q.Options[1].Title)
}

func TestFetchQuestionNotLoggedIn(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "pwd", "")
	_, err := s.FetchQuestion(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSubmit(t *testing.T) {
	srv := fakeSite(t, quizPage)
	s := newTestSession(t, srv, "alice", "pwd", "")
	require.NoError(t, s.Login(context.Background()))

	err := s.Submit(context.Background(), candidate.Option{Title: "三体", Value: "11-0"})
	require.NoError(t, err)
}

func TestParseQuestionNoForm(t *testing.T) {
	_, _, err := parseQuestion("<html><body>maintenance</body></html>", "answer")
	assert.Error(t, err)
}
