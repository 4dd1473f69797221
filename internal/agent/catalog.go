package agent

import (
	"fmt"

	"github.com/tsengs/familyagent/internal/memory"
	"github.com/tsengs/familyagent/internal/tools"
)

// CatalogDeps carries the collaborators the handler catalog needs.
// BrowserDriver may be nil; the catalog then runs without the booking
// handler and triage routes those requests elsewhere.
type CatalogDeps struct {
	Store         memory.Store
	RecordLimit   int
	SummarizeURL  string
	SummarizeKey  string
	PlacesURL     string
	PlacesKey     string
	BrowserDriver tools.BrowserDriver
}

// NewCatalog builds the full handler graph and returns its triage root.
// The graph is validated before use.
func NewCatalog(deps CatalogDeps) (*Agent, error) {
	summarize := &Agent{
		Name: "Summarize Agent",
		Instructions: "你是網頁摘要助手。使用 summarize_url 工具抓取使用者提供的網址，" +
			"整理出重點摘要，用繁體中文回覆。若無法抓取內容，請直接說明。",
		Tools: []tools.Tool{
			tools.NewSummarizeTool(deps.SummarizeURL, deps.SummarizeKey),
		},
	}

	restaurant := &Agent{
		Name: "Restaurant Recommend Agent",
		Instructions: "你是餐廳推薦助手。使用 search_places 工具搜尋餐廳，" +
			"依評分整理清單並附上地圖連結，用繁體中文回覆。" +
			"如果使用者沒有指定地區，預設搜尋台灣。",
		Tools: []tools.Tool{
			tools.NewPlacesTool(deps.PlacesURL, deps.PlacesKey),
			tools.NewSearchMemoryTool(deps.Store, deps.RecordLimit),
		},
	}

	memoryMgr := &Agent{
		Name: "Memory Management Agent",
		Instructions: "你是對話記憶助手。使用 search_conversation_memory 查詢先前的對話，" +
			"回答「我們之前說過什麼」這類問題；需要時用 save_conversation_memory 記下重要約定。" +
			"用繁體中文回覆，找不到紀錄時照實說明。",
		Tools: []tools.Tool{
			tools.NewSearchMemoryTool(deps.Store, deps.RecordLimit),
			tools.NewSaveMemoryTool(deps.Store),
		},
	}

	specialists := []*Agent{summarize, restaurant, memoryMgr}

	if deps.BrowserDriver != nil {
		browser := &Agent{
			Name: "Browser Agent",
			Instructions: "你是訂位助手。使用 restaurant_booking 工具在訂位頁面完成人數、" +
				"日期與時段選擇，停在最後確認頁讓使用者自己送出。" +
				"缺少人數或日期時先用 search_conversation_memory 查先前的對話再詢問使用者。" +
				"需要逐步操作時可使用 browser_navigate、browser_evaluate、browser_click " +
				"與 browser_screenshot。用繁體中文回報進度。",
			Tools: []tools.Tool{
				tools.NewBookingTool(deps.BrowserDriver),
				tools.NewNavigateTool(deps.BrowserDriver),
				tools.NewEvaluateTool(deps.BrowserDriver),
				tools.NewClickTool(deps.BrowserDriver),
				tools.NewScreenshotTool(deps.BrowserDriver),
				tools.NewSearchMemoryTool(deps.Store, deps.RecordLimit),
				tools.NewSaveMemoryTool(deps.Store),
			},
		}
		specialists = append(specialists, browser)
	}

	triage := &Agent{
		Name: "Triage Agent",
		Instructions: "你是家庭助理的分流員。判斷使用者需求並轉交給合適的助手：" +
			"網址摘要交給 Summarize Agent，找餐廳交給 Restaurant Recommend Agent，" +
			"回憶先前對話交給 Memory Management Agent，網路訂位交給 Browser Agent。" +
			"一般閒聊就直接用繁體中文回覆，不需要轉交。",
		Handoffs: specialists,
	}

	if err := ValidateGraph(triage); err != nil {
		return nil, fmt.Errorf("build handler catalog: %w", err)
	}
	return triage, nil
}
