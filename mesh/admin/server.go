/*
 * MIT License
 *
 * Copyright (c) 2026 meshnet authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package admin is the read-only HTTP introspection surface layered on
// top of a running mesh.Context — the admin-appsock path's HTTP-speaking
// sibling (§6 "admin-appsock"), meant to be bound to loopback only.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nabbar/meshnet/mesh"
)

// Server wraps a gin engine exposing /healthz, /peers and /stats.
type Server struct {
	engine *gin.Engine
	mesh   *mesh.Context
}

// New builds an admin server over ctx. gin runs in release mode; callers
// wanting request logs should wrap the handler with their own logger
// middleware.
func New(ctx *mesh.Context) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{engine: e, mesh: ctx}
	e.GET("/healthz", s.healthz)
	e.GET("/peers", s.peers)
	e.GET("/stats", s.stats)
	return s
}

// Handler returns the http.Handler to bind to a loopback-only listener.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) peers(c *gin.Context) {
	c.JSON(http.StatusOK, s.mesh.Peers())
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.mesh.Stats())
}
