package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

type LedgerHandler struct {
	ledger *services.Ledger
}

func NewLedgerHandler(ledger *services.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// GetBalance returns the balance of ?principal=, defaulting to the caller.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	principal := models.Principal(c.Query("principal"))
	if principal == models.ZeroPrincipal {
		principal = middleware.Principal(c)
	}

	balance := h.ledger.BalanceOf(principal)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Principal: principal,
			Balance:   balance.Dec(),
			Tokens:    models.FormatTokens(balance),
		},
	})
}

func (h *LedgerHandler) GetAllowance(c *gin.Context) {
	owner := models.Principal(c.Query("owner"))
	if owner == models.ZeroPrincipal {
		owner = middleware.Principal(c)
	}
	spender := models.Principal(c.Query("spender"))
	if spender == models.ZeroPrincipal {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "spender is required",
			"code":  "InvalidInput",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"allowance": models.AllowanceResponse{
			Owner:     owner,
			Spender:   spender,
			Allowance: h.ledger.Allowance(owner, spender).Dec(),
		},
	})
}

func (h *LedgerHandler) GetSupply(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"supply": models.SupplyResponse{
			Name:        h.ledger.Name(),
			Symbol:      h.ledger.Symbol(),
			Decimals:    h.ledger.Decimals(),
			TotalSupply: h.ledger.TotalSupply().Dec(),
			TotalMinted: h.ledger.TotalMinted().Dec(),
			TotalBurned: h.ledger.TotalBurned().Dec(),
		},
	})
}

// GetTransfers lists recent movements touching the caller.
func (h *LedgerHandler) GetTransfers(c *gin.Context) {
	caller := middleware.Principal(c)
	limit := queryLimit(c, 50, 200)

	transfers := make([]models.TransferRecordResponse, 0, limit)
	for _, t := range h.ledger.Transfers(0) {
		if t.From != caller && t.To != caller && t.Spender != caller {
			continue
		}
		transfers = append(transfers, t.Response())
		if len(transfers) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"transfers": transfers,
	})
}

func (h *LedgerHandler) Approve(c *gin.Context) {
	var req models.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondInvalid(c, err)
		return
	}

	owner := middleware.Principal(c)
	if err := h.ledger.Approve(owner, req.Spender, amount); err != nil {
		respondError(c, "Failed to approve", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"allowance": models.AllowanceResponse{
			Owner:     owner,
			Spender:   req.Spender,
			Allowance: amount.Dec(),
		},
	})
}

func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondInvalid(c, err)
		return
	}

	from := middleware.Principal(c)
	if err := h.ledger.Transfer(from, req.To, amount); err != nil {
		respondError(c, "Failed to transfer", err)
		return
	}

	h.respondBalance(c, from)
}

func (h *LedgerHandler) TransferFrom(c *gin.Context) {
	var req models.TransferFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondInvalid(c, err)
		return
	}

	if err := h.ledger.TransferFrom(middleware.Principal(c), req.From, req.To, amount); err != nil {
		respondError(c, "Failed to transfer", err)
		return
	}

	h.respondBalance(c, req.From)
}

func (h *LedgerHandler) Mint(c *gin.Context) {
	var req models.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondInvalid(c, err)
		return
	}

	if err := h.ledger.Mint(middleware.Principal(c), req.To, amount); err != nil {
		respondError(c, "Failed to mint", err)
		return
	}

	h.respondBalance(c, req.To)
}

func (h *LedgerHandler) Burn(c *gin.Context) {
	var req models.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		respondInvalid(c, err)
		return
	}

	holder := middleware.Principal(c)
	if err := h.ledger.Burn(holder, amount); err != nil {
		respondError(c, "Failed to burn", err)
		return
	}

	h.respondBalance(c, holder)
}

func (h *LedgerHandler) respondBalance(c *gin.Context, principal models.Principal) {
	balance := h.ledger.BalanceOf(principal)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Principal: principal,
			Balance:   balance.Dec(),
			Tokens:    models.FormatTokens(balance),
		},
	})
}
