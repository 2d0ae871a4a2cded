package notifier

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

// buildSubject composes the digest subject out of the group's titles; more
// than three titles collapse into the first three plus 等.
func buildSubject(articles []model.Article) string {
	titles := make([]string, 0, len(articles))
	for _, article := range articles {
		titles = append(titles, article.Title)
	}

	if len(titles) > 3 {
		return fmt.Sprintf("【公文通】%s、%s、%s等", titles[0], titles[1], titles[2])
	}

	return "【公文通】" + strings.Join(titles, "、")
}

type digestArticle struct {
	Title       string
	URL         string
	Source      string
	DateDisplay string
	Summary     string
}

type digestData struct {
	Platform         string
	Articles         []digestArticle
	SubscribePageURL string
}

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<head>
<style>
    body {
        font-family: 'PingFang SC', 'Helvetica Neue', Helvetica, Arial, sans-serif;
        background-color: #f5f5f5;
        color: #333;
        padding: 20px;
        max-width: 600px;
        margin: 0 auto;
    }
    .header {
        text-align: center;
        margin-bottom: 20px;
        padding-bottom: 10px;
        border-bottom: 1px solid #eee;
    }
    .article-card {
        background-color: white;
        border-radius: 8px;
        box-shadow: 0 2px 8px rgba(0,0,0,0.1);
        padding: 15px;
        margin-bottom: 15px;
    }
    .title {
        font-size: 18px;
        font-weight: bold;
        margin-bottom: 8px;
        color: #003366;
    }
    .title a {
        color: #003366;
        text-decoration: none;
    }
    .summary {
        color: #444;
        font-size: 14px;
        margin-top: 6px;
    }
    .meta {
        display: flex;
        justify-content: space-between;
        color: #666;
        font-size: 14px;
        margin-top: 5px;
    }
    .platform {
        font-weight: bold;
        color: #0055a4;
    }
    .date {
        color: #777;
    }
    .footer {
        text-align: center;
        margin-top: 20px;
        font-size: 12px;
        color: #888;
    }
</style>
</head>
<body>
<div class="header">
    <h2>📝 深圳技术大学公文通更新</h2>
    <p>以下是来自<b>{{.Platform}}</b>的最新通知：</p>
</div>
{{range .Articles}}
<div class="article-card">
    <div class="title">
        <a href="{{.URL}}" target="_blank">{{.Title}}</a>
    </div>
    {{if .Summary}}<div class="summary">{{.Summary}}</div>{{end}}
    <div class="meta">
        <span class="platform">📣 {{.Source}}</span>
        <span class="date">🕒 {{.DateDisplay}}</span>
    </div>
</div>
{{end}}
<div class="footer">
    <p>感谢您的订阅！如需调整订阅设置，请访问 <a href="{{.SubscribePageURL}}">订阅页面</a>。</p>
    <p>© 深圳技术大学GoldenMouse - 让校园信息触手可及 🐭</p>
</div>
</body>
</html>
`))

func renderDigest(platform string, articles []digestArticle, subscribePageURL string) (string, error) {
	var out strings.Builder

	err := digestTemplate.Execute(&out, digestData{
		Platform:         platform,
		Articles:         articles,
		SubscribePageURL: subscribePageURL,
	})
	if err != nil {
		return "", err
	}

	return out.String(), nil
}

func dateDisplay(article model.Article) string {
	if article.DetailTime != "" {
		return article.Date + " " + article.DetailTime
	}
	return article.Date
}
