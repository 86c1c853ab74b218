// Package models defines domain entities for the vkm audio client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs decoded from VK API responses
//   - [Audio] : a single audio record from audio.get / audio.search
//   - [Album] : an audio album from audio.getAlbums
//
// 2. Persistent Entities: database-backed records
//   - [CachedToken] : an access token cached per login
//   - [Download] : a completed audio download
//
// Persistent entities implement [Model] and are stored by the repositories package.
package models
