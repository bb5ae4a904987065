package auth

import (
	"html/template"
	"net/http"
)

// The login form is inlined so the auth package has no asset dependency.
var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>zexplorer - Login</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: #14141f;
            color: #e8e8ee;
        }
        .login-box {
            background: #1b1b28;
            border: 1px solid #2a2a3a;
            border-radius: 10px;
            padding: 40px;
            width: 100%;
            max-width: 360px;
        }
        h1 { font-size: 22px; text-align: center; margin-bottom: 24px; }
        input[type=password] {
            width: 100%;
            padding: 10px;
            margin-bottom: 16px;
            background: #14141f;
            border: 1px solid #2a2a3a;
            border-radius: 6px;
            color: #e8e8ee;
            font-size: 14px;
        }
        button {
            width: 100%;
            padding: 10px;
            background: #4a5dd0;
            border: none;
            border-radius: 6px;
            color: #fff;
            font-size: 14px;
            cursor: pointer;
        }
        .error { color: #e07070; font-size: 13px; margin-bottom: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="login-box">
        <h1>zexplorer</h1>
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
        <form method="POST" action="/login">
            <input type="password" name="password" placeholder="Password" autofocus required>
            <button type="submit">Sign in</button>
        </form>
    </div>
</body>
</html>
`))

func renderLoginPage(w http.ResponseWriter, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	loginTemplate.Execute(w, struct{ Error string }{Error: errMsg})
}
