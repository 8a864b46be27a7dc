package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// StealthScript evades common headless-browser fingerprinting signals:
// navigator.webdriver, empty plugins/mimeTypes, missing chrome.runtime,
// WebGL vendor/renderer strings, and a handful of other properties real
// browsers always populate.
const StealthScript = `
(function() {
    'use strict';

    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });
    try {
        delete Object.getPrototypeOf(navigator).webdriver;
    } catch (e) {}

    const mockPlugins = [
        { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1 },
        { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1 },
        { name: 'Native Client', description: '', filename: 'internal-nacl-plugin', length: 2 }
    ];

    try {
        const pluginArray = Object.create(PluginArray.prototype);
        mockPlugins.forEach((p, i) => {
            const plugin = Object.create(Plugin.prototype);
            Object.defineProperties(plugin, {
                name: { value: p.name, enumerable: true },
                description: { value: p.description, enumerable: true },
                filename: { value: p.filename, enumerable: true },
                length: { value: p.length, enumerable: true }
            });
            pluginArray[i] = plugin;
            pluginArray[p.name] = plugin;
        });
        Object.defineProperty(pluginArray, 'length', { value: mockPlugins.length });
        Object.defineProperty(pluginArray, 'item', { value: (i) => pluginArray[i] || null });
        Object.defineProperty(pluginArray, 'namedItem', { value: (n) => pluginArray[n] || null });
        Object.defineProperty(pluginArray, 'refresh', { value: () => {} });

        Object.defineProperty(navigator, 'plugins', {
            get: () => pluginArray,
            configurable: true
        });
    } catch (e) {}

    Object.defineProperty(navigator, 'languages', {
        get: () => Object.freeze(['en-US', 'en']),
        configurable: true
    });

    if (!window.chrome) {
        Object.defineProperty(window, 'chrome', {
            value: {}, writable: true, enumerable: true, configurable: false
        });
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = {
            get id() { return undefined; },
            connect: function() {},
            sendMessage: function() {}
        };
    }
    if (!window.chrome.csi) {
        window.chrome.csi = function() {
            return { onloadT: Date.now(), startE: Date.now(), pageT: Math.random() * 1000, tran: 15 };
        };
    }
    if (!window.chrome.loadTimes) {
        window.chrome.loadTimes = function() {
            return {
                requestTime: Date.now() / 1000,
                startLoadTime: Date.now() / 1000,
                commitLoadTime: Date.now() / 1000 + Math.random(),
                finishLoadTime: Date.now() / 1000 + Math.random(),
                navigationType: 'Navigate',
                wasFetchedViaSpdy: false,
                wasNpnNegotiated: true,
                npnNegotiatedProtocol: 'h2',
                connectionInfo: 'h2'
            };
        };
    }

    const getParameterProxyHandler = {
        apply: function(target, ctx, args) {
            const param = args[0];
            const result = Reflect.apply(target, ctx, args);
            if (param === 37445) return 'Intel Inc.';
            if (param === 37446) return 'Intel Iris OpenGL Engine';
            return result;
        }
    };
    try {
        const webglGetParameter = WebGLRenderingContext.prototype.getParameter;
        WebGLRenderingContext.prototype.getParameter = new Proxy(webglGetParameter, getParameterProxyHandler);
    } catch (e) {}
    try {
        const webgl2GetParameter = WebGL2RenderingContext.prototype.getParameter;
        WebGL2RenderingContext.prototype.getParameter = new Proxy(webgl2GetParameter, getParameterProxyHandler);
    } catch (e) {}

    try {
        Object.defineProperty(HTMLIFrameElement.prototype, 'contentWindow', {
            get: function() {
                return this.contentDocument && this.contentDocument.defaultView || null;
            }
        });
    } catch (e) {}

    if (navigator.hardwareConcurrency === 0 || navigator.hardwareConcurrency === undefined) {
        Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 4, configurable: true });
    }
    if (navigator.deviceMemory === undefined || navigator.deviceMemory === 0) {
        Object.defineProperty(navigator, 'deviceMemory', { get: () => 8, configurable: true });
    }
    if (!navigator.connection) {
        Object.defineProperty(navigator, 'connection', {
            get: () => ({ effectiveType: '4g', rtt: 100, downlink: 10, saveData: false }),
            configurable: true
        });
    }
    if (!navigator.getBattery) {
        navigator.getBattery = function() {
            return Promise.resolve({
                charging: true, chargingTime: 0, dischargingTime: Infinity, level: 1.0,
                addEventListener: function() {}, removeEventListener: function() {}
            });
        };
    }
})();
`

// CreateStealthPage creates a new page with go-rod/stealth's evasions plus
// StealthScript applied before any page script runs.
func CreateStealthPage(b *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(StealthScript); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}
