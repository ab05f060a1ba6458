// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package logfields

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/govnr"
	"github.com/orbs-network/scribe/log"
)

func Facet(name string) *log.Field {
	return log.String("facet", name)
}

func Phase(name string) *log.Field {
	return log.String("phase", name)
}

func Step(name string) *log.Field {
	return log.String("step", name)
}

func DeploymentId(id string) *log.Field {
	return log.String("deployment-id", id)
}

func ProposalId(id string) *log.Field {
	return log.String("proposal-id", id)
}

func Address(key string, address common.Address) *log.Field {
	return log.String(key, address.Hex())
}

func TxHash(hash common.Hash) *log.Field {
	return log.String("tx-hash", hash.Hex())
}

func Version(key string, version float64) *log.Field {
	return log.Float64(key, version)
}

type Errorer interface {
	Error(message string, fields ...*log.Field)
}

type govnrErrorer struct {
	logger Errorer
}

func (h *govnrErrorer) Error(err error) {
	h.logger.Error("recovered panic", log.Error(err))
}

func GovnrErrorer(logger Errorer) govnr.Errorer {
	return &govnrErrorer{logger}
}
