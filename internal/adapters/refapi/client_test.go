package refapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/studylake/studylake/internal/adapters/refapi"
)

// capture records what the fake upstream saw. Assertions on it happen on the
// test goroutine, never inside the handler.
type capture struct {
	auth  string
	path  string
	query url.Values
}

func serve(body string) (*httptest.Server, *capture) {
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.path = r.URL.Path
		got.query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	return srv, got
}

func TestClient(t *testing.T) {
	Convey("Given a reference API client", t, func() {
		ctx := context.Background()

		Convey("When fetching users", func() {
			srv, got := serve(`[
				{"user_id":"u1","name":"Ana","lastname":"Torres"},
				{"user_id":"u2","name":"Luis","lastname":"Rojas"}
			]`)
			defer srv.Close()

			client := refapi.New(srv.URL, "secret-token")
			users, err := client.Users(ctx)

			Convey("Then the reference rows decode with the bearer token sent", func() {
				So(err, ShouldBeNil)
				So(got.path, ShouldEqual, "/user")
				So(got.auth, ShouldEqual, "Bearer secret-token")
				So(len(users), ShouldEqual, 2)
				So(users[0].ID, ShouldEqual, "u1")
				So(users[0].Name, ShouldEqual, "Ana")
				So(users[0].LastName, ShouldEqual, "Torres")
			})
		})

		Convey("When fetching courses", func() {
			srv, got := serve(`[{"course_id":7,"title":"Calculus","teacher_id":"t1"}]`)
			defer srv.Close()

			courses, err := refapi.New(srv.URL, "token").Courses(ctx)

			So(err, ShouldBeNil)
			So(got.path, ShouldEqual, "/course")
			So(len(courses), ShouldEqual, 1)
			So(courses[0].ID, ShouldEqual, int64(7))
			So(courses[0].TeacherID, ShouldEqual, "t1")
		})

		Convey("When fetching progress for a teacher", func() {
			srv, got := serve(`[
				{"user_id":"u1","completion_percentage":80},
				{"user_id":"u1","completion_percentage":60},
				{"user_id":"u2","completion_percentage":100}
			]`)
			defer srv.Close()

			progress, err := refapi.New(srv.URL, "token").Progress(ctx, "t1")

			Convey("Then rows average per student", func() {
				So(err, ShouldBeNil)
				So(got.path, ShouldEqual, "/student_course_progress_view")
				So(got.query.Get("teacher_id"), ShouldEqual, "eq.t1")
				So(progress["u1"], ShouldAlmostEqual, 70.0, 1e-9)
				So(progress["u2"], ShouldAlmostEqual, 100.0, 1e-9)
			})
		})

		Convey("When the upstream answers non-200", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			}))
			defer srv.Close()

			_, err := refapi.New(srv.URL, "stale-token").Users(ctx)

			So(errors.Is(err, refapi.ErrStatus), ShouldBeTrue)
		})

		Convey("When the body is not valid JSON", func() {
			srv, _ := serve(`<html>login</html>`)
			defer srv.Close()

			_, err := refapi.New(srv.URL, "token").Users(ctx)

			So(errors.Is(err, refapi.ErrDecode), ShouldBeTrue)
		})

		Convey("When the server is unreachable", func() {
			_, err := refapi.New("http://127.0.0.1:1", "token").Users(ctx)

			So(errors.Is(err, refapi.ErrRequest), ShouldBeTrue)
		})
	})
}
