// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"encoding/json"
	"github.com/orbs-network/diamond-deployer/test/with"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type httpConfigForTests struct {
	endpoint string
}

func (c *httpConfigForTests) ApprovalServiceEndpoint() string {
	return c.endpoint
}

// serveMemoryService exposes an in memory service using the routes the http client expects
func serveMemoryService(service *InMemoryApprovalService) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		path := strings.TrimPrefix(r.URL.Path, "/proposals")
		switch {
		case r.Method == http.MethodPost && path == "":
			var p Proposal
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			id, _ := service.CreateProposal(ctx, &p)
			_ = json.NewEncoder(w).Encode(createProposalResponse{Id: id})
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/execute"):
			id := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/execute")
			if err := service.ExecuteProposal(ctx, id); err == ErrProposalNotFound {
				http.NotFound(w, r)
			} else if err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
			}
		case r.Method == http.MethodGet:
			status, err := service.GetProposal(ctx, strings.TrimPrefix(path, "/"))
			if err != nil {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(status)
		default:
			http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		}
	}))
}

func TestHttpApprovalService_ProposalLifecycle(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		backend := NewInMemoryApprovalService(nil)
		server := serveMemoryService(backend)
		defer server.Close()

		client := NewHttpApprovalService(&httpConfigForTests{server.URL + "/"}, harness.Logger)
		ctx := context.Background()

		id, err := client.CreateProposal(ctx, &Proposal{DeploymentId: "d-1", Step: "deployFacets:A@1", Data: "0x6080"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		status, err := client.GetProposal(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ProposalPending, status.State)

		require.Error(t, client.ExecuteProposal(ctx, id), "a pending proposal must not execute")

		require.NoError(t, backend.Approve(id))
		require.NoError(t, client.ExecuteProposal(ctx, id))

		status, err = client.GetProposal(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ProposalExecuted, status.State)
		require.NotEmpty(t, status.TxHash)
		require.NotEmpty(t, status.ContractAddress, "a proposal without a recipient deploys a contract")
		require.True(t, status.IsFinal())
	})
}

func TestHttpApprovalService_UnknownProposal(t *testing.T) {
	with.Logging(t, func(harness *with.LoggingHarness) {
		server := serveMemoryService(NewInMemoryApprovalService(nil))
		defer server.Close()

		client := NewHttpApprovalService(&httpConfigForTests{server.URL}, harness.Logger)
		_, err := client.GetProposal(context.Background(), "missing")
		require.Error(t, err)
		require.Contains(t, err.Error(), ErrProposalNotFound.Error())
	})
}

func TestInMemoryApprovalService_Reject(t *testing.T) {
	service := NewInMemoryApprovalService(nil)
	ctx := context.Background()

	id, err := service.CreateProposal(ctx, &Proposal{Step: "performCut", To: "0x01", Data: "0x1f931c1c"})
	require.NoError(t, err)
	require.NoError(t, service.Reject(id, "not today"))

	status, err := service.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ProposalRejected, status.State)
	require.Equal(t, "not today", status.Reason)
	require.Error(t, service.Approve(id), "a rejected proposal cannot be approved")
}

func TestInMemoryApprovalService_AutoApproveExecutesThroughExecutor(t *testing.T) {
	var executed []string
	service := NewInMemoryApprovalService(func(ctx context.Context, p *Proposal) (string, string, error) {
		executed = append(executed, p.Step)
		return "0xabc", "", nil
	}).WithAutoApprove()
	ctx := context.Background()

	id, err := service.CreateProposal(ctx, &Proposal{Step: "performCut", To: "0x01"})
	require.NoError(t, err)
	require.NoError(t, service.ExecuteProposal(ctx, id))
	require.NoError(t, service.ExecuteProposal(ctx, id), "executing twice is a no-op")

	status, _ := service.GetProposal(ctx, id)
	require.Equal(t, ProposalExecuted, status.State)
	require.Equal(t, "0xabc", status.TxHash)
	require.Equal(t, []string{"performCut"}, executed)
	require.Equal(t, 1, service.ExecuteCount(id))
}
