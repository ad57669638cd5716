package rules

import "github.com/IshaanNene/topicscout/internal/types"

var boilerplate = []string{
	"script", "style", "noscript", "iframe",
	".ad", ".ads", ".advertisement", ".sidebar", ".footer", "footer", "nav",
}

// fallbackRule is used when a registry holds no base rule at all.
var fallbackRule = func() *Rule {
	r := newsRule()
	r.Name = "builtin"
	_ = r.compile()
	return &r
}()

func newsRule() Rule {
	return Rule{
		Name:        "news",
		Description: "News articles",
		SiteType:    types.SiteNews,
		Selectors: Selectors{
			Title:   []string{"h1", ".title", ".headline", `[data-testid="headline"]`},
			Content: []string{".article-content", ".content", ".post-content", "article", ".story-body"},
			Author:  []string{".author", ".byline", ".writer", `[data-testid="author"]`},
			Date:    []string{".date", ".publish-date", ".timestamp", "time", `[data-testid="date"]`},
			Images:  []string{"img", ".article-image", ".featured-image"},
		},
		Preprocess: Preprocess{RemoveElements: boilerplate},
	}
}

// DefaultRules returns the built-in rule set: one base rule per site type
// that has bespoke markup, then URL-pattern rules for the social platforms.
func DefaultRules() []Rule {
	return []Rule{
		newsRule(),
		{
			Name:        "blog",
			Description: "Blog posts",
			SiteType:    types.SiteBlog,
			Selectors: Selectors{
				Title:   []string{"h1", ".post-title", ".entry-title"},
				Content: []string{".post-content", ".entry-content", ".blog-content"},
				Author:  []string{".author", ".post-author", ".byline"},
				Date:    []string{".post-date", ".entry-date", ".published"},
				Images:  []string{"img", ".post-image", ".featured-image"},
			},
			Preprocess: Preprocess{RemoveElements: boilerplate},
		},
		{
			Name:        "ecommerce",
			Description: "Product pages",
			SiteType:    types.SiteEcommerce,
			Selectors: Selectors{
				Title:   []string{"h1", ".product-title", ".item-title"},
				Content: []string{".product-description", ".item-description", ".details"},
				Price:   []string{".price", ".current-price", ".sale-price"},
				Images:  []string{".product-image", ".item-image", ".gallery img"},
				Rating:  []string{".rating", ".stars", ".reviews-score"},
			},
			CustomFields: []CustomField{
				{Name: "price", Selector: ".price"},
				{Name: "currency", Selector: ".price", Attribute: "data-currency"},
			},
			Preprocess: Preprocess{RemoveElements: boilerplate},
		},
		{
			Name:        "video",
			Description: "Video pages",
			SiteType:    types.SiteVideo,
			Selectors: Selectors{
				Title:   []string{"h1", ".video-title", ".title"},
				Content: []string{".video-description", ".description"},
				Author:  []string{".channel-name", ".uploader", ".creator"},
				Views:   []string{".views", ".view-count"},
				Images:  []string{".thumbnail", ".video-thumb", "video"},
			},
			Preprocess: Preprocess{RemoveElements: boilerplate},
		},
		{
			Name:        "encyclopedia",
			Description: "Encyclopedia entries: summary first, then body paragraphs",
			SiteType:    types.SiteEncyclopedia,
			Selectors: Selectors{
				Title:   []string{"h1", ".title", ".headline-title", "#firstHeading"},
				Content: []string{".content", ".para", ".description", ".summary", "article", ".lemma-summary"},
				Author:  []string{".author", ".editor", ".contributor"},
				Date:    []string{".date", ".update-time", ".last-modified", "time", "#footer-info-lastmod"},
				Images:  []string{"img", ".picture", ".photo", ".image"},
			},
			Preprocess: Preprocess{
				RemoveElements: append([]string{".mw-editsection", "#toc", ".reference", "sup.reference"}, boilerplate...),
				Replace:        []Replacement{{Pattern: `\[\d+(?:-\d+)?\]`, With: ""}},
			},
			Content: ContentPolicy{
				SummarySelectors:   []string{".lemma-summary", ".J-summary", `div[class*="lemmaSummary"]`},
				SummaryMinLength:   20,
				ParagraphSelector:  `.para, div[class*="para_"], #mw-content-text .mw-parser-output > p`,
				ParagraphMinLength: 20,
				MaxParagraphs:      5,
				PreferParagraphs:   true,
				ExcludeKeywords:    []string{"编辑", "目录", "[edit]", "Contents"},
			},
		},
		{
			Name:        "gov",
			Description: "Government sites: long-form body text, footer boilerplate excluded",
			SiteType:    types.SiteGov,
			Selectors: Selectors{
				Title: []string{"h1", ".title", ".article-title", ".main-title"},
				Content: []string{
					".content", ".article-content", ".text", ".main-content", ".article-body",
					`div[class*="content"]`, `div[class*="text"]`, ".TRS_Editor", ".content_text",
				},
				Author: []string{".author", ".source", ".publisher"},
				Date:   []string{".date", ".publish-date", ".time", ".release-time"},
				Images: []string{"img", ".photo", ".picture"},
			},
			Preprocess: Preprocess{RemoveElements: boilerplate},
			Content: ContentPolicy{
				MinLength:          100,
				Floor:              100,
				ParagraphSelector:  "p",
				ParagraphMinLength: 20,
				MaxParagraphs:      10,
				ExcludeKeywords:    []string{"网站地图", "联系我们", "版权所有", "ICP备", "政府网站", "Copyright"},
			},
		},
		{
			Name:        "weibo",
			Description: "Weibo posts",
			URLPatterns: []string{`weibo\.com`, `m\.weibo\.cn`},
			SiteType:    types.SiteSocial,
			Selectors: Selectors{
				Title:    []string{".txt", ".content"},
				Content:  []string{".txt", ".content"},
				Author:   []string{".name", ".username"},
				Date:     []string{".time", ".date"},
				Images:   []string{".img", ".pic"},
				Likes:    []string{".like", ".heart"},
				Comments: []string{".comment", ".reply"},
				Shares:   []string{".share", ".repost"},
			},
			Options: Options{UseBrowser: true, WaitSelector: ".txt", DelayMS: 1000, Retries: 3},
		},
		{
			Name:        "zhihu",
			Description: "Zhihu questions and answers",
			URLPatterns: []string{`zhihu\.com`},
			SiteType:    types.SiteSocial,
			Selectors: Selectors{
				Title:    []string{"h1", ".QuestionHeader-title"},
				Content:  []string{".RichContent", ".QuestionAnswer-content"},
				Author:   []string{".AuthorInfo-name", ".UserLink-link"},
				Date:     []string{".ContentItem-time", ".Question-mainColumnTime"},
				Images:   []string{".origin_image", ".content_image"},
				Likes:    []string{".VoteButton--up", ".VoteButton"},
				Comments: []string{".ContentItem-action", ".CommentButton"},
			},
			Options: Options{UseBrowser: true, WaitSelector: ".RichContent", DelayMS: 2000, Retries: 3},
		},
		{
			Name:        "xiaohongshu",
			Description: "Xiaohongshu notes",
			URLPatterns: []string{`xiaohongshu\.com`, `xhslink\.com`},
			SiteType:    types.SiteSocial,
			Selectors: Selectors{
				Title:    []string{".title", ".note-title"},
				Content:  []string{".desc", ".note-content"},
				Author:   []string{".author-name", ".user-name"},
				Date:     []string{".date", ".publish-time"},
				Images:   []string{".cover", ".note-img"},
				Likes:    []string{".like-count", ".heart-count"},
				Comments: []string{".comment-count"},
				Shares:   []string{".share-count"},
			},
			Options: Options{UseBrowser: true, WaitSelector: ".note-content", DelayMS: 1500, Retries: 3},
		},
		{
			Name:        "douyin",
			Description: "Douyin videos",
			URLPatterns: []string{`douyin\.com`},
			SiteType:    types.SiteVideo,
			Selectors: Selectors{
				Title:    []string{".desc", ".video-desc"},
				Content:  []string{".desc", ".video-desc"},
				Author:   []string{".nickname", ".author-name"},
				Date:     []string{".time", ".publish-time"},
				Images:   []string{".cover", ".video-cover"},
				Views:    []string{".play-count", ".view-count"},
				Likes:    []string{".like-count", ".digg-count"},
				Comments: []string{".comment-count"},
				Shares:   []string{".share-count", ".forward-count"},
			},
			Options: Options{UseBrowser: true, WaitSelector: ".video-desc", DelayMS: 2000, Retries: 3},
		},
	}
}
