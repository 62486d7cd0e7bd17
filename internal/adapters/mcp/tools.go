package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var lawTypeValues = []string{"lov", "forskrift", "vedtak", "instruks", "reglement", "delegering", "ikrafttredelse", "endring"}

func searchLegalDocumentsTool() mcp.Tool {
	return mcp.NewTool(toolSearchLegalDocuments,
		mcp.WithDescription("Hybrid lexical and semantic search over indexed Norwegian laws and regulations."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query in Norwegian, e.g. 'oppsigelse arbeidsmiljøloven'"),
		),
		mcp.WithString("law_type",
			mcp.Description("Restrict to one kind of statute"),
			mcp.Enum(lawTypeValues...),
		),
		mcp.WithNumber("year",
			mcp.Description("Restrict to documents from this year"),
		),
		mcp.WithString("ministry",
			mcp.Description("Restrict to a ministry (substring match)"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based result page (default: 1)"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Results per page (default: 10, max: 50)"),
		),
	)
}

func getLegalDocumentTool() mcp.Tool {
	return mcp.NewTool(toolGetLegalDocument,
		mcp.WithDescription("Fetch the full text of one document by archive filename and member path."),
		mcp.WithString("archive",
			mcp.Required(),
			mcp.Description("Archive filename as returned by search, e.g. 'gjeldende-lover.tar.bz2'"),
		),
		mcp.WithString("member",
			mcp.Required(),
			mcp.Description("Member path inside the archive, e.g. 'nl/nl-20050617-062.xml'"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Truncate content to this many characters (default: 20000)"),
		),
	)
}

func listArchivesTool() mcp.Tool {
	return mcp.NewTool(toolListArchives,
		mcp.WithDescription("List indexed archives with their document counts."),
	)
}

func askLegalQuestionTool() mcp.Tool {
	return mcp.NewTool(toolAskLegalQuestion,
		mcp.WithDescription("Answer a legal question with citations using the retrieval agent."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question in Norwegian"),
		),
		mcp.WithString("law_type",
			mcp.Description("Restrict retrieval to one kind of statute"),
			mcp.Enum(lawTypeValues...),
		),
	)
}
