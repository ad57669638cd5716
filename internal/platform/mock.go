package platform

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/IshaanNene/topicscout/internal/types"
)

// mockProfile describes the synthetic records a platform returns when its
// live API is unavailable.
type mockProfile struct {
	title    string // format verbs: keyword, index
	content  string // format verb: keyword
	author   string // format verb: index
	step     time.Duration
	siteType types.SiteType
	views    bool
	link     func(seed uint64, i int) string
}

var (
	weiboMock = mockProfile{
		title:    "关于%s的微博%d",
		content:  "这是一条关于%s的模拟微博内容，用于演示系统功能。",
		author:   "微博用户%d",
		step:     time.Hour,
		siteType: types.SiteSocial,
		link: func(seed uint64, i int) string {
			return fmt.Sprintf("https://weibo.com/%s/%s", mockDigits(seed, i, "user", 10), mockDigits(seed, i, "post", 16))
		},
	}
	douyinMock = mockProfile{
		title:    "关于%s的抖音视频%d",
		content:  "这是一个关于%s的模拟抖音视频描述，用于演示系统功能。",
		author:   "抖音用户%d",
		step:     time.Hour,
		siteType: types.SiteVideo,
		views:    true,
		link: func(seed uint64, i int) string {
			return "https://www.douyin.com/video/" + mockDigits(seed, i, "video", 19)
		},
	}
	xiaohongshuMock = mockProfile{
		title:    "%s精选笔记 #%d",
		content:  "分享一些关于%s的心得和经验，这是一条模拟小红书笔记。",
		author:   "小红书博主%d",
		step:     90 * time.Minute,
		siteType: types.SiteSocial,
		views:    true,
		link: func(seed uint64, i int) string {
			return fmt.Sprintf("https://www.xiaohongshu.com/explore/%016x%08x", hash64(fmt.Sprintf("%d:%d:note", seed, i)), uint32(seed))
		},
	}
	zhihuMock = mockProfile{
		title:    "%s相关问题 #%d",
		content:  "关于%s，这是一个模拟的知乎回答摘要，用于演示系统功能。",
		author:   "知乎用户%d",
		step:     150 * time.Minute,
		siteType: types.SiteSocial,
		views:    true,
		link: func(seed uint64, i int) string {
			return "https://www.zhihu.com/question/" + mockDigits(seed, i, "question", 9)
		},
	}
)

// generate returns limit records for keyword shaped like the platform's live
// results. Output depends only on its arguments.
func (p mockProfile) generate(platform, keyword string, limit int, now time.Time) []*types.CrawlResult {
	seed := hash64(platform + "\x00" + keyword)
	results := make([]*types.CrawlResult, 0, limit)
	for i := 1; i <= limit; i++ {
		u := p.link(seed, i)
		m := &types.Metrics{
			Likes:    mockCount(seed, i, 1, 1000),
			Comments: mockCount(seed, i, 2, 200),
			Shares:   mockCount(seed, i, 3, 100),
		}
		if p.views {
			m.Views = mockCount(seed, i, 4, 10000)
		}
		results = append(results, &types.CrawlResult{
			ID:          types.ResultID(u),
			Title:       fmt.Sprintf(p.title, keyword, i),
			Content:     fmt.Sprintf(p.content, keyword),
			URL:         u,
			Author:      fmt.Sprintf(p.author, i),
			PublishTime: now.Add(-time.Duration(i) * p.step).UTC().Format(time.RFC3339),
			Platform:    platform,
			SiteType:    p.siteType,
			Metrics:     m,
			Images:      []string{},
		})
	}
	return results
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// mockCount derives a value in [1, ceiling] from the seed, index and field.
func mockCount(seed uint64, i, field int, ceiling int64) int64 {
	h := hash64(fmt.Sprintf("%d:%d:%d", seed, i, field))
	return int64(h%uint64(ceiling)) + 1
}

// mockDigits derives an n-digit decimal identifier with no leading zero.
func mockDigits(seed uint64, i int, field string, n int) string {
	h := hash64(fmt.Sprintf("%d:%d:%s", seed, i, field))
	out := make([]byte, n)
	out[0] = byte('1' + h%9)
	h /= 9
	for j := 1; j < n; j++ {
		if h == 0 {
			h = hash64(fmt.Sprintf("%d:%d:%s:%d", seed, i, field, j))
		}
		out[j] = byte('0' + h%10)
		h /= 10
	}
	return string(out)
}
