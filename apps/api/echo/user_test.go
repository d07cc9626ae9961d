package echoapi_test

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/thesisflow/apps/api/echo"
	"github.com/trezcool/thesisflow/core/user"
	testutil "github.com/trezcool/thesisflow/tests"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	pwd := "Analyt1c@lEngine"
	student := testutil.CreateUser(t, env.usrRepo, "Ada Lovelace", "ada", "ada@test.test", pwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@test.test", pwd, []string{user.RoleStudent}, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown user", body: []byte(`{"username": "nobody", "password": "x"}`), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: []byte(`{"username": "ada", "password": "wrong"}`), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "inactive user", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: marchallObj(t, echoapi.LoginRequest{Username: " ADA ", Password: pwd}), wantCode: http.StatusOK},
		{name: "by email", body: marchallObj(t, echoapi.LoginRequest{Username: "ada@test.test", Password: pwd}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var res echoapi.LoginResponse
				unmarshal(t, rec, &res)
				assert.NotEmpty(t, res.Token)
			}
		})
	}

	// last login is recorded
	usr, err := env.usrRepo.GetUser(ctxBg, user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.usrRepo, "Ada Lovelace", "ada", "ada@test.test", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@test.test", "", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "inactive user", token: getToken(t, env.conf, naughty), wantCode: http.StatusForbidden},
		{name: "ok", token: getToken(t, env.conf, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_queryTutors(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.usrRepo, "Ada Lovelace", "ada", "ada@test.test", "", []string{user.RoleStudent}, true)
	turing := testutil.CreateUser(t, env.usrRepo, "Alan Turing", "turing", "turing@test.test", "", []string{user.RoleTutor}, true)
	hopper := testutil.CreateUser(t, env.usrRepo, "Grace Hopper", "hopper", "hopper@test.test", "", []string{user.RoleTutor}, true)
	testutil.CreateUser(t, env.usrRepo, "Retired", "retired", "retired@test.test", "", []string{user.RoleTutor}, false)

	tutor := func(u user.User) echoapi.TutorResponse {
		return echoapi.TutorResponse{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	token := getToken(t, env.conf, student)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/tutors", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "active tutors", path: "/v1/users/tutors", token: token, wantData: marchallList(t, tutor(turing), tutor(hopper))},
		{name: "search", path: "/v1/users/tutors?search=GRACE", token: token, wantData: marchallList(t, tutor(hopper))},
		{name: "search (unknown)", path: "/v1/users/tutors?search=lol", token: token, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	student := testutil.CreateUser(t, env.usrRepo, "Ada Lovelace", "ada", "ada@test.test", "", []string{user.RoleStudent}, true, now)
	tutor := testutil.CreateUser(t, env.usrRepo, "Alan Turing", "turing", "turing@test.test", "", []string{user.RoleTutor}, true, now.Add(time.Hour))
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true, now.Add(2*time.Hour))
	examiner := testutil.CreateUser(t, env.usrRepo, "Examiner", "exam", "exam@test.test", "", []string{user.RoleAdminExaminer}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@test.test", "", []string{user.RoleStudent}, false, now.Add(4*time.Hour))

	adminToken := getToken(t, env.conf, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, env.conf, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, student, tutor, admin, examiner, naughty)},
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: marchallList(t)},
		{name: "search=TUR", path: path("TUR", "", nil), token: adminToken, wantData: marchallList(t, tutor)},
		{name: "role=admin:", path: path("", "", nil, user.RoleAdmin), token: adminToken, wantData: marchallList(t, admin, examiner)},
		{
			name: "role=tutor:,student:", path: path("", "", nil, user.RoleTutor, user.RoleStudent),
			token: adminToken, wantData: marchallList(t, student, tutor, naughty),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "order by -created_at", path: path("", "-created_at", nil), token: adminToken,
			wantData: marchallList(t, naughty, examiner, admin, tutor, student),
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_queryRoles(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, env.conf, admin))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@test.test", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, env.usrRepo, "Owner", "owner", "owner@test.test", "", []string{user.RoleAdminOwner}, true)
	testutil.CreateUser(t, env.usrRepo, "Taken", "taken", "taken@test.test", "", []string{user.RoleStudent}, true)

	newUser := func(uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "Ada Lovelace",
			Username:        uname,
			Email:           uname + "@test.test",
			Password:        "Analyt1c@lEngine",
			PasswordConfirm: "Analyt1c@lEngine",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "Auth required", body: newUser("ada", user.RoleStudent), wantCode: http.StatusUnauthorized},
		{
			name: "username taken", token: getToken(t, env.conf, admin), body: newUser("taken", user.RoleStudent),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "invalid role", token: getToken(t, env.conf, admin), body: newUser("ada", "lol"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "role above own", token: getToken(t, env.conf, admin), body: newUser("ada", user.RoleAdminExaminer),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{name: "student created", token: getToken(t, env.conf, admin), body: newUser("ada", user.RoleStudent), wantCode: http.StatusCreated},
		{name: "examiner created by owner", token: getToken(t, env.conf, owner), body: newUser("exam", user.RoleAdminExaminer), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var usr user.User
				unmarshal(t, rec, &usr)
				assert.NotEmpty(t, usr.ID)
				assert.True(t, usr.Active())
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)

	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@test.test", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, env.usrRepo, "Ada Lovelace", "ada", "ada@test.test", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    env.conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(env.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * env.conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    true,
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims, env.conf)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, env.conf, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, env.conf, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
