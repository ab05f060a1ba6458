// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"golang.org/x/net/context/ctxhttp"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type httpServiceConfig interface {
	ApprovalServiceEndpoint() string
}

// HttpApprovalService talks JSON to an approval service exposing
// POST /proposals, GET /proposals/{id} and POST /proposals/{id}/execute
type HttpApprovalService struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

func NewHttpApprovalService(config httpServiceConfig, logger log.Logger) *HttpApprovalService {
	return &HttpApprovalService{
		endpoint: strings.TrimRight(config.ApprovalServiceEndpoint(), "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.WithTags(log.String("adapter", "approval-http")),
	}
}

type createProposalResponse struct {
	Id string `json:"id"`
}

func (s *HttpApprovalService) CreateProposal(ctx context.Context, proposal *Proposal) (string, error) {
	var res createProposalResponse
	if err := s.do(ctx, http.MethodPost, "/proposals", proposal, &res); err != nil {
		return "", errors.Wrapf(err, "failed to create proposal for step %s", proposal.Step)
	}
	if res.Id == "" {
		return "", errors.Errorf("approval service returned no proposal id for step %s", proposal.Step)
	}
	s.logger.Info("proposal created", log.String("proposal-id", res.Id), log.String("step", proposal.Step))
	return res.Id, nil
}

func (s *HttpApprovalService) GetProposal(ctx context.Context, id string) (*ProposalStatus, error) {
	var status ProposalStatus
	if err := s.do(ctx, http.MethodGet, "/proposals/"+url.PathEscape(id), nil, &status); err != nil {
		return nil, errors.Wrapf(err, "failed to get proposal %s", id)
	}
	if status.Id == "" {
		status.Id = id
	}
	return &status, nil
}

func (s *HttpApprovalService) ExecuteProposal(ctx context.Context, id string) error {
	if err := s.do(ctx, http.MethodPost, "/proposals/"+url.PathEscape(id)+"/execute", nil, nil); err != nil {
		return errors.Wrapf(err, "failed to execute proposal %s", id)
	}
	return nil
}

func (s *HttpApprovalService) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.endpoint+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := ctxhttp.Do(ctx, s.client, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "failed reading response body")
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrProposalNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		return errors.Errorf("approval service responded %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "failed to decode approval service response")
}
