// Package fixture is a small in-process demo service used to exercise
// the conformance tester end to end: most endpoints behave, a few are
// deliberately built to violate an RFC property so the test suite can
// confirm the tester actually catches them. Grounded on
// anasdox-workline's internal/server.New (chi router, huma.Register
// operations, humachi adapter) for the conformant surface; the
// intentionally-nonconformant routes (OPTIONS/405/HEAD) are registered
// directly on the chi router, bypassing huma, since huma's own
// OPTIONS/405 handling is already correct and would mask the scenarios
// the property kit needs to detect.
package fixture

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"apiconform/internal/sqlstate"
	"apiconform/internal/state"
)

// Service is the demo HTTP API plus the StateSource reading its backing
// sqlite database.
type Service struct {
	Handler http.Handler
	Source  state.Source
	db      *sql.DB
}

// New builds the demo service. Close must be called when done to release
// the in-memory sqlite connection.
func New() (*Service, error) {
	db, err := newDB()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("apiconform fixture service", "0.1.0")
	hcfg.OpenAPIPath = "/openapi.json"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerUsers(api, db)
	registerPosts(api, db)
	registerBuggyRoutes(router, db)

	return &Service{
		Handler: router,
		Source:  sqlstate.NewFromDB(db, sqlstate.DriverSQLite),
		db:      db,
	}, nil
}

// Close releases the backing database connection.
func (s *Service) Close() error { return s.db.Close() }

type userBody struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type listUsersOutput struct {
	Body []userBody `json:"body"`
}

// registerUsers wires /api/users. The GET handler reproduces scenario
// S1: it writes an audit_log row on every call, an observable side
// effect a safety property must be able to catch.
func registerUsers(api huma.API, db *sql.DB) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/api/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*listUsersOutput, error) {
		if _, err := db.ExecContext(ctx, `INSERT INTO audit_log (action) VALUES ('list-users')`); err != nil {
			return nil, huma.Error500InternalServerError("audit log write failed", err)
		}
		rows, err := db.QueryContext(ctx, `SELECT id, name FROM users`)
		if err != nil {
			return nil, huma.Error500InternalServerError("query failed", err)
		}
		defer rows.Close()

		var out listUsersOutput
		for rows.Next() {
			var u userBody
			if err := rows.Scan(&u.ID, &u.Name); err != nil {
				return nil, huma.Error500InternalServerError("scan failed", err)
			}
			out.Body = append(out.Body, u)
		}
		return &out, nil
	})

	type createInput struct {
		Body userBody `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/api/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *createInput) (*struct {
		Body userBody `json:"body"`
	}, error) {
		res, err := db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?)`, input.Body.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("insert failed", err)
		}
		id, _ := res.LastInsertId()
		return &struct {
			Body userBody `json:"body"`
		}{Body: userBody{ID: int(id), Name: input.Body.Name}}, nil
	})
}

type postBody struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// registerPosts wires /api/posts/{id}. PUT reproduces scenario S2 (it
// writes an audit_log row every call, so repeating it is not idempotent);
// DELETE reproduces scenario S3 (200 on first delete, 404 afterward).
func registerPosts(api huma.API, db *sql.DB) {
	type pathInput struct {
		ID int `path:"id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-post",
		Method:      http.MethodGet,
		Path:        "/api/posts/{id}",
		Summary:     "Get post",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *pathInput) (*struct {
		Body postBody `json:"body"`
	}, error) {
		var p postBody
		err := db.QueryRowContext(ctx, `SELECT id, title FROM posts WHERE id = ? AND deleted = 0`, input.ID).Scan(&p.ID, &p.Title)
		if err == sql.ErrNoRows {
			return nil, huma.Error404NotFound("post not found")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("query failed", err)
		}
		return &struct {
			Body postBody `json:"body"`
		}{Body: p}, nil
	})

	type putInput struct {
		ID   int      `path:"id"`
		Body postBody `json:"body"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "update-post",
		Method:      http.MethodPut,
		Path:        "/api/posts/{id}",
		Summary:     "Update post",
	}, func(ctx context.Context, input *putInput) (*struct {
		Body postBody `json:"body"`
	}, error) {
		if _, err := db.ExecContext(ctx, `INSERT INTO audit_log (action) VALUES ('update-post')`); err != nil {
			return nil, huma.Error500InternalServerError("audit log write failed", err)
		}
		if _, err := db.ExecContext(ctx, `UPDATE posts SET title = ? WHERE id = ?`, input.Body.Title, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("update failed", err)
		}
		return &struct {
			Body postBody `json:"body"`
		}{Body: postBody{ID: input.ID, Title: input.Body.Title}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-post",
		Method:        http.MethodDelete,
		Path:          "/api/posts/{id}",
		Summary:       "Delete post",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *pathInput) (*struct{}, error) {
		var deleted int
		err := db.QueryRowContext(ctx, `SELECT deleted FROM posts WHERE id = ?`, input.ID).Scan(&deleted)
		if err == sql.ErrNoRows || deleted == 1 {
			return nil, huma.Error404NotFound("post not found")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("query failed", err)
		}
		if _, err := db.ExecContext(ctx, `UPDATE posts SET deleted = 1 WHERE id = ?`, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("delete failed", err)
		}
		return &struct{}{}, nil
	})
}

// registerBuggyRoutes adds handlers registered directly on the chi
// router, deliberately violating the property each scenario targets.
func registerBuggyRoutes(router chi.Router, db *sql.DB) {
	// S4: OPTIONS /api/users returns 200 with no Allow header.
	router.Method(http.MethodOptions, "/api/users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// S6: PATCH /api/users returns 405 with no Allow header.
	router.Method(http.MethodPatch, "/api/users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	// S5: HEAD /api/posts returns a body and a matching Content-Length,
	// which a HEAD response must never do.
	router.Method(http.MethodHead, "/api/posts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal([]postBody{{ID: 1, Title: "first post"}})
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", itoaLen(len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))

	// GET /api/posts backs the HEAD route above so HEAD/GET consistency
	// has a real GET to compare against.
	router.Get("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.Query(`SELECT id, title FROM posts WHERE deleted = 0`)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		var out []postBody
		for rows.Next() {
			var p postBody
			if err := rows.Scan(&p.ID, &p.Title); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			out = append(out, p)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
}

func itoaLen(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
