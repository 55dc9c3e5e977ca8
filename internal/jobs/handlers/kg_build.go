package handlers

import (
	"errors"
	"fmt"

	"github.com/yungbote/paperdesk-backend/internal/data/repos/documents"
	"github.com/yungbote/paperdesk-backend/internal/jobs"
	"github.com/yungbote/paperdesk-backend/internal/jobs/runtime"
	"github.com/yungbote/paperdesk-backend/internal/modules/kg"
	"github.com/yungbote/paperdesk-backend/internal/platform/elastic"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// KGBuildHandler runs the knowledge graph build for one document. The full
// text comes from the lexical index, which holds the complete content.
type KGBuildHandler struct {
	log     *logger.Logger
	docs    documents.DocumentRepo
	search  elastic.Searcher
	builder *kg.Builder
}

func NewKGBuildHandler(log *logger.Logger, docs documents.DocumentRepo, search elastic.Searcher, builder *kg.Builder) *KGBuildHandler {
	return &KGBuildHandler{
		log:     log.With("handler", "KGBuild"),
		docs:    docs,
		search:  search,
		builder: builder,
	}
}

func (h *KGBuildHandler) Type() string { return jobs.JobTypeKGBuild }

func (h *KGBuildHandler) Run(jc *runtime.Context) error {
	docID, ok := jc.PayloadUUID("document_id")
	if !ok {
		jc.Fail("validate", errors.New("payload missing document_id"))
		return nil
	}

	jc.Progress("load_document", 10, "Loading document")
	doc, err := h.docs.GetByID(jc.Ctx, nil, docID)
	if err != nil {
		jc.Fail("load_document", err)
		return nil
	}
	if doc == nil {
		jc.Fail("load_document", fmt.Errorf("document %s not found", docID))
		return nil
	}

	jc.Progress("fetch_content", 25, "Fetching document text")
	indexed, err := h.search.GetDocument(jc.Ctx, docID.String())
	if err != nil {
		jc.Fail("fetch_content", err)
		return nil
	}
	if indexed == nil || indexed.Content == "" {
		jc.Fail("fetch_content", fmt.Errorf("document %s has no indexed content", docID))
		return nil
	}

	jc.Progress("build_graph", 50, "Building knowledge graph")
	req := kg.BuildRequest{
		DocumentID: docID.String(),
		Title:      doc.Title,
		Content:    indexed.Content,
		UserID:     doc.OwnerUserID.String(),
		DocType:    doc.DocType,
	}
	if doc.KnowledgeBaseID != nil {
		req.KnowledgeBaseID = doc.KnowledgeBaseID.String()
	}
	result := h.builder.BuildForDocument(jc.Ctx, req)
	if !result.Success {
		jc.Fail("build_graph", errors.New(result.ErrorMessage))
		return nil
	}

	jc.Succeed("graph_build", result)
	return nil
}
