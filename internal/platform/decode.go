package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/topicscout/internal/parser"
	"github.com/IshaanNene/topicscout/internal/types"
)

const weiboTitleRunes = 50

// count accepts a JSON number or a display string such as "1.2万".
type count int64

func (c *count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = count(parser.ParseCount(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*c = count(f)
	return nil
}

// ident accepts a JSON string or number.
type ident string

func (id *ident) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ident(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	*id = ident(b)
	return nil
}

// stripHTML returns the visible text of an HTML fragment.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func unixTime(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func titleFrom(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

func newResult(platform, url, title, content, author, published string, m types.Metrics) *types.CrawlResult {
	r := &types.CrawlResult{
		ID:          types.ResultID(url),
		Title:       title,
		Content:     content,
		URL:         url,
		Author:      author,
		PublishTime: published,
		Platform:    platform,
		SiteType:    types.SiteSocial,
		Images:      []string{},
	}
	if !m.IsZero() {
		r.Metrics = &m
	}
	return r
}

type weiboResponse struct {
	OK   int `json:"ok"`
	Data struct {
		Cards []struct {
			Mblog *struct {
				ID        ident  `json:"id"`
				BID       string `json:"bid"`
				Text      string `json:"text"`
				CreatedAt string `json:"created_at"`
				User      struct {
					ID         ident  `json:"id"`
					ScreenName string `json:"screen_name"`
				} `json:"user"`
				Attitudes count `json:"attitudes_count"`
				Comments  count `json:"comments_count"`
				Reposts   count `json:"reposts_count"`
			} `json:"mblog"`
		} `json:"cards"`
	} `json:"data"`
}

func parseWeibo(body []byte) ([]*types.CrawlResult, error) {
	var resp weiboResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	results := []*types.CrawlResult{}
	for _, card := range resp.Data.Cards {
		mb := card.Mblog
		if mb == nil {
			continue
		}
		text := stripHTML(mb.Text)
		key := mb.BID
		if key == "" {
			key = string(mb.ID)
		}
		u := fmt.Sprintf("https://weibo.com/%s/%s", mb.User.ID, key)
		results = append(results, newResult(Weibo, u, titleFrom(text, weiboTitleRunes), text,
			mb.User.ScreenName, mb.CreatedAt, types.Metrics{
				Likes:    int64(mb.Attitudes),
				Comments: int64(mb.Comments),
				Shares:   int64(mb.Reposts),
			}))
	}
	return results, nil
}

type douyinResponse struct {
	StatusCode int `json:"status_code"`
	AwemeList  []struct {
		AwemeID    ident  `json:"aweme_id"`
		Desc       string `json:"desc"`
		CreateTime int64  `json:"create_time"`
		Author     struct {
			Nickname string `json:"nickname"`
		} `json:"author"`
		Video struct {
			Cover struct {
				URLList []string `json:"url_list"`
			} `json:"cover"`
		} `json:"video"`
		Statistics struct {
			Plays    count `json:"play_count"`
			Diggs    count `json:"digg_count"`
			Comments count `json:"comment_count"`
			Shares   count `json:"share_count"`
		} `json:"statistics"`
	} `json:"aweme_list"`
}

func parseDouyin(body []byte) ([]*types.CrawlResult, error) {
	var resp douyinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 {
		return nil, fmt.Errorf("douyin status %d", resp.StatusCode)
	}
	results := []*types.CrawlResult{}
	for _, a := range resp.AwemeList {
		u := "https://www.douyin.com/video/" + string(a.AwemeID)
		r := newResult(Douyin, u, titleFrom(a.Desc, weiboTitleRunes), a.Desc, a.Author.Nickname,
			unixTime(a.CreateTime), types.Metrics{
				Views:    int64(a.Statistics.Plays),
				Likes:    int64(a.Statistics.Diggs),
				Comments: int64(a.Statistics.Comments),
				Shares:   int64(a.Statistics.Shares),
			})
		r.SiteType = types.SiteVideo
		if len(a.Video.Cover.URLList) > 0 {
			r.Images = append(r.Images, a.Video.Cover.URLList[0])
		}
		results = append(results, r)
	}
	return results, nil
}

type xiaohongshuResponse struct {
	Success *bool  `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		Notes []struct {
			ID    ident  `json:"id"`
			Title string `json:"title"`
			Desc  string `json:"desc"`
			Time  string `json:"time"`
			User  struct {
				Nickname string `json:"nickname"`
			} `json:"user"`
			Cover struct {
				URL string `json:"url"`
			} `json:"cover"`
			Likes    count `json:"liked_count"`
			Comments count `json:"comment_count"`
			Shares   count `json:"share_count"`
		} `json:"notes"`
	} `json:"data"`
}

func parseXiaohongshu(body []byte) ([]*types.CrawlResult, error) {
	var resp xiaohongshuResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("xiaohongshu: %s", resp.Msg)
	}
	results := []*types.CrawlResult{}
	for _, n := range resp.Data.Notes {
		title := n.Title
		if title == "" {
			title = titleFrom(n.Desc, weiboTitleRunes)
		}
		u := "https://www.xiaohongshu.com/explore/" + string(n.ID)
		r := newResult(Xiaohongshu, u, title, n.Desc, n.User.Nickname, n.Time, types.Metrics{
			Likes:    int64(n.Likes),
			Comments: int64(n.Comments),
			Shares:   int64(n.Shares),
		})
		if n.Cover.URL != "" {
			r.Images = append(r.Images, n.Cover.URL)
		}
		results = append(results, r)
	}
	return results, nil
}

type zhihuResponse struct {
	Data []struct {
		Type   string `json:"type"`
		Object *struct {
			ID          ident  `json:"id"`
			Token       ident  `json:"token"`
			Type        string `json:"type"`
			Title       string `json:"title"`
			Excerpt     string `json:"excerpt"`
			CreatedTime int64  `json:"created_time"`
			Author      struct {
				Name string `json:"name"`
			} `json:"author"`
			Question *struct {
				ID   ident  `json:"id"`
				Name string `json:"name"`
			} `json:"question"`
			VoteUp   count `json:"voteup_count"`
			Comments count `json:"comment_count"`
		} `json:"object"`
	} `json:"data"`
}

func parseZhihu(body []byte) ([]*types.CrawlResult, error) {
	var resp zhihuResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	results := []*types.CrawlResult{}
	for _, d := range resp.Data {
		o := d.Object
		if o == nil {
			continue
		}
		title := stripHTML(o.Title)
		token := string(o.Token)
		if o.Question != nil {
			if title == "" {
				title = stripHTML(o.Question.Name)
			}
			if token == "" {
				token = string(o.Question.ID)
			}
		}
		if token == "" {
			token = string(o.ID)
		}
		if title == "" || token == "" {
			continue
		}
		u := "https://www.zhihu.com/question/" + token
		r := newResult(Zhihu, u, title, stripHTML(o.Excerpt), o.Author.Name, unixTime(o.CreatedTime), types.Metrics{
			Likes:    int64(o.VoteUp),
			Comments: int64(o.Comments),
		})
		results = append(results, r)
	}
	return results, nil
}
