package handlers

import (
	"html/template"
	"net/http"
)

// swaggerVersion pins the swagger-ui-dist bundle loaded from unpkg
const swaggerVersion = "5.10.0"

type swaggerPage struct {
	Title   string
	SpecURL string
	Version string
}

var swaggerTemplate = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css">
    <style>
        html { box-sizing: border-box; overflow: -moz-scrollbars-vertical; overflow-y: scroll; }
        *, *:before, *:after { box-sizing: inherit; }
        body { margin:0; padding:0; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            const ui = SwaggerUIBundle({
                url: "{{.SpecURL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout"
            });
            window.ui = ui;
        };
    </script>
</body>
</html>`))

// SwaggerUI serves the Swagger UI page for the Farm Advisor API
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	swaggerTemplate.Execute(w, swaggerPage{
		Title:   "Farm Advisor API Documentation",
		SpecURL: "/api/docs/openapi.json",
		Version: swaggerVersion,
	})
}
